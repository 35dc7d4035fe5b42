// Package classify maps raw model output to the response kinds the orchestrator acts on.
//
// Classification is deterministic and ordered. The first matching kind wins:
//
//	AlreadyExecuted > ToolCallRequest > ToolErrorReport > ClaimedSideEffect > PlainText
//
// Anything unrecognised is PlainText, so ambiguity never causes a side effect.
package classify

// Kind is the classification of one model response.
type Kind string

// Response kinds in priority order.
const (
	AlreadyExecuted   Kind = "already_executed"
	ToolCallRequest   Kind = "tool_call_request"
	ToolErrorReport   Kind = "tool_error_report"
	ClaimedSideEffect Kind = "claimed_side_effect"
	PlainText         Kind = "plain_text"
)

func (k Kind) String() string { return string(k) }
