// Package agent runs chat turns: generation, classification, at most one corrective
// tool execution, and the final reply.
package agent

import (
	"errors"

	"github.com/ashureev/aidiary/internal/classify"
	"github.com/ashureev/aidiary/internal/tools"
)

var (
	// ErrUnauthenticated is returned when a turn has no user.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is required")
)

// Fixed replies.
const (
	ApologyReply   = "Sorry, I'm having trouble processing your request. Please try again later."
	DuplicateReply = "This diary entry was already recorded a moment ago; I did not save it again."
)

// Path records which branch of the turn produced the reply.
type Path string

// Turn paths.
const (
	PathPlain          Path = "plain"
	PathExecuted       Path = "executed"
	PathBackfilled     Path = "backfilled"
	PathDuplicate      Path = "duplicate"
	PathReported       Path = "reported"
	PathGeneratorError Path = "generator_error"
)

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Reply     string
	SessionID string
	Kind      classify.Kind
	Path      Path
	Tool      *ToolOutcome
}

// ToolOutcome describes the tool execution a turn performed.
type ToolOutcome struct {
	Name   string       `json:"name"`
	Result tools.Result `json:"result"`
}

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body of a chat reply.
type ChatResponse struct {
	Reply     string       `json:"reply"`
	SessionID string       `json:"session_id"`
	Kind      string       `json:"kind"`
	Path      string       `json:"path"`
	Tool      *ToolOutcome `json:"tool,omitempty"`
}

// NewChatResponse converts a turn result to its wire form.
func NewChatResponse(res *TurnResult) ChatResponse {
	return ChatResponse{
		Reply:     res.Reply,
		SessionID: res.SessionID,
		Kind:      res.Kind.String(),
		Path:      string(res.Path),
		Tool:      res.Tool,
	}
}

// CreateSessionRequest is the body of a new-session request.
type CreateSessionRequest struct {
	Title string `json:"title"`
}
