package agent

import (
	"context"
)

// Processor runs chat turns. It is implemented by Orchestrator.
type Processor interface {
	// HandleTurn processes one user message and returns the persisted reply.
	HandleTurn(ctx context.Context, userID, text string) (*TurnResult, error)
}

// Ensure Orchestrator implements Processor.
var _ Processor = (*Orchestrator)(nil)
