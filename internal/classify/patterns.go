package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pattern file modes.
const (
	ModeExtend  = "extend"
	ModeReplace = "replace"
)

// Patterns are the literal and regexp tables the classifier matches against.
// Phrase lists are matched case-insensitively as substrings; marker lists are regexps.
type Patterns struct {
	Mode string `yaml:"mode"`

	ExecutedMarkers []string `yaml:"executed_markers"`
	SuccessPhrases  []string `yaml:"success_phrases"`
	IDMarkers       []string `yaml:"id_markers"`
	ErrorPhrases    []string `yaml:"error_phrases"`
	ToolNames       []string `yaml:"tool_names"`
	ClaimPhrases    []string `yaml:"claim_phrases"`

	ToolNameKeys []string `yaml:"tool_name_keys"`
	ParamKeys    []string `yaml:"param_keys"`
}

// DefaultPatterns returns the built-in tables.
func DefaultPatterns() Patterns {
	return Patterns{
		Mode:            ModeExtend,
		ExecutedMarkers: []string{`OK id=\d+`},
		SuccessPhrases: []string{
			"saved", "created", "recorded", "updated", "successfully",
			"已保存", "已创建", "已记录", "已更新", "成功",
		},
		IDMarkers:    []string{`(?i)\bid\s*[=:：]`, `编号`, `#\d+`},
		ErrorPhrases: []string{"ERROR:", "is required", "cannot be empty", "invalid", "must be", "不能为空", "失败", "无效"},
		ToolNames:    []string{"create_task", "update_task", "list_tasks", "append_diary", "set_reminder"},
		ClaimPhrases: []string{
			"saved", "recorded", "has been added to your diary", "added to your diary", "noted in your diary",
			"已保存", "已记录", "记下来了", "写入日记", "保存了",
		},
		ToolNameKeys: []string{"tool_name", "tool", "name"},
		ParamKeys:    []string{"parameters", "params", "arguments"},
	}
}

// LoadPatterns reads a YAML pattern file and merges it with the defaults.
// In extend mode (the default) lists are appended; in replace mode a non-empty
// list replaces the built-in one.
func LoadPatterns(path string) (Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("read pattern file: %w", err)
	}

	var file Patterns
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Patterns{}, fmt.Errorf("parse pattern file: %w", err)
	}

	mode := strings.ToLower(strings.TrimSpace(file.Mode))
	if mode == "" {
		mode = ModeExtend
	}
	if mode != ModeExtend && mode != ModeReplace {
		return Patterns{}, fmt.Errorf("parse pattern file: unknown mode %q", file.Mode)
	}

	merged := DefaultPatterns()
	merged.Mode = mode
	mergeList(&merged.ExecutedMarkers, file.ExecutedMarkers, mode)
	mergeList(&merged.SuccessPhrases, file.SuccessPhrases, mode)
	mergeList(&merged.IDMarkers, file.IDMarkers, mode)
	mergeList(&merged.ErrorPhrases, file.ErrorPhrases, mode)
	mergeList(&merged.ToolNames, file.ToolNames, mode)
	mergeList(&merged.ClaimPhrases, file.ClaimPhrases, mode)
	mergeList(&merged.ToolNameKeys, file.ToolNameKeys, mode)
	mergeList(&merged.ParamKeys, file.ParamKeys, mode)
	return merged, nil
}

func mergeList(dst *[]string, src []string, mode string) {
	if len(src) == 0 {
		return
	}
	if mode == ModeReplace {
		*dst = append([]string(nil), src...)
		return
	}
	*dst = append(*dst, src...)
}

type compiled struct {
	executedMarkers []*regexp.Regexp
	idMarkers       []*regexp.Regexp
	successPhrases  []string
	errorPhrases    []string
	toolNames       []string
	claimPhrases    []string
	toolNameKeys    []string
	paramKeys       []string
}

func compile(p Patterns) (*compiled, error) {
	c := &compiled{
		successPhrases: lowerAll(p.SuccessPhrases),
		errorPhrases:   lowerAll(p.ErrorPhrases),
		toolNames:      lowerAll(p.ToolNames),
		claimPhrases:   lowerAll(p.ClaimPhrases),
		toolNameKeys:   p.ToolNameKeys,
		paramKeys:      p.ParamKeys,
	}
	var err error
	if c.executedMarkers, err = compileAll(p.ExecutedMarkers); err != nil {
		return nil, err
	}
	if c.idMarkers, err = compileAll(p.IDMarkers); err != nil {
		return nil, err
	}
	return c, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
