package classify

import (
	"strings"
)

// Classifier applies an ordered set of pattern tables to model output.
type Classifier struct {
	c *compiled
}

// New compiles p into a classifier.
func New(p Patterns) (*Classifier, error) {
	c, err := compile(p)
	if err != nil {
		return nil, err
	}
	return &Classifier{c: c}, nil
}

var defaultClassifier = mustNew(DefaultPatterns())

func mustNew(p Patterns) *Classifier {
	c, err := New(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the classifier built from the built-in tables.
func Default() *Classifier { return defaultClassifier }

// Classify uses the built-in tables.
func Classify(raw string, sawOwnToolMarker bool) Kind {
	return defaultClassifier.Classify(raw, sawOwnToolMarker)
}

// ParseToolCall uses the built-in tables.
func ParseToolCall(raw string) (Call, bool) {
	return defaultClassifier.ParseToolCall(raw)
}

// Classify maps raw model text to a Kind. sawOwnToolMarker is true when the text is
// a reply to a tool result this turn already produced.
func (cl *Classifier) Classify(raw string, sawOwnToolMarker bool) Kind {
	if strings.TrimSpace(raw) == "" {
		return PlainText
	}
	lower := strings.ToLower(raw)
	call, isCall := cl.ParseToolCall(raw)

	if cl.executedMarker(raw) {
		return AlreadyExecuted
	}
	// Parameter values of a tool call are user content, not confirmation.
	prose := raw
	if isCall {
		prose = strings.Replace(raw, call.Raw, "", 1)
	}
	if cl.confirmsSuccess(prose, sawOwnToolMarker) {
		return AlreadyExecuted
	}
	if isCall {
		return ToolCallRequest
	}
	if containsAny(lower, cl.c.errorPhrases) && containsAny(lower, cl.c.toolNames) {
		return ToolErrorReport
	}
	if containsAny(lower, cl.c.claimPhrases) {
		return ClaimedSideEffect
	}
	return PlainText
}

func (cl *Classifier) executedMarker(raw string) bool {
	for _, re := range cl.c.executedMarkers {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

// confirmsSuccess reports whether text pairs a success phrase with an id marker,
// or carries a success phrase right after one of our own tool results.
func (cl *Classifier) confirmsSuccess(text string, sawOwnToolMarker bool) bool {
	if !containsAny(strings.ToLower(text), cl.c.successPhrases) {
		return false
	}
	if sawOwnToolMarker {
		return true
	}
	for _, re := range cl.c.idMarkers {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
