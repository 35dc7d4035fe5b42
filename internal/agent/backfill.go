package agent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// diaryPrefixes are matched case-insensitively at the start of the user message,
// longest first so that "记录日记" wins over "日记".
var diaryPrefixes = []string{
	"record diary",
	"write diary",
	"记录日记",
	"记录一下",
	"记日记",
	"写日记",
	"diary",
	"日记",
}

const prefixSeparators = ":：,，-"

// extractDiaryContent strips a leading diary command from msg. It returns "" when
// msg does not start with a known command.
func extractDiaryContent(msg string) string {
	trimmed := strings.TrimSpace(msg)

	for _, prefix := range diaryPrefixes {
		if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
			continue
		}
		rest := trimmed[len(prefix):]
		// "diaryland" is not a command.
		if isASCII(prefix) && rest != "" {
			if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		return strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(prefixSeparators, r)
		})
	}
	return ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
