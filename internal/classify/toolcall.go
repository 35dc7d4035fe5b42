package classify

import (
	"encoding/json"
	"strings"
)

// maxCandidates bounds how many brace-delimited objects are tried per response.
const maxCandidates = 32

// Call is a tool invocation extracted from model output.
type Call struct {
	Name   string
	Params map[string]any
	// Raw is the JSON object text the call was parsed from.
	Raw string
}

// ParseToolCall finds the first JSON object in raw that names a tool and carries a
// parameters object. The object may be fenced or embedded in prose. The tool name
// is returned lowercased.
func (cl *Classifier) ParseToolCall(raw string) (Call, bool) {
	tried := 0
	for start := strings.IndexByte(raw, '{'); start >= 0 && tried < maxCandidates; {
		tried++
		if end := matchingBrace(raw, start); end >= 0 {
			if call, ok := cl.decodeCall(raw[start : end+1]); ok {
				return call, true
			}
		}

		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Call{}, false
}

func (cl *Classifier) decodeCall(text string) (Call, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return Call{}, false
	}

	var name string
	for _, key := range cl.c.toolNameKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			name = strings.ToLower(strings.TrimSpace(s))
			break
		}
	}
	if name == "" {
		return Call{}, false
	}

	for _, key := range cl.c.paramKeys {
		v, present := obj[key]
		if !present {
			continue
		}
		switch p := v.(type) {
		case map[string]any:
			return Call{Name: name, Params: p, Raw: text}, true
		case nil:
			return Call{Name: name, Params: map[string]any{}, Raw: text}, true
		case string:
			// Some models double-encode the arguments.
			var inner map[string]any
			if err := json.Unmarshal([]byte(p), &inner); err == nil {
				return Call{Name: name, Params: inner, Raw: text}, true
			}
		}
	}
	return Call{}, false
}

// matchingBrace returns the index of the brace closing the object opened at start,
// skipping braces inside JSON strings. It returns -1 when the object is unterminated.
func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
