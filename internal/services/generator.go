package services

import (
	"context"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
)

// Completion is the terminal event of one generation run.
type Completion struct {
	Text    string
	Model   string
	Aborted bool
}

// Generator is the external generation collaborator. Implementations stream
// text increments through onDelta (which may be nil) and return the final
// completion. An aborted run must come back with Aborted set rather than a
// fabricated partial completion; the turn service never persists partial
// output.
type Generator interface {
	Generate(ctx context.Context, history []*conversation.Message, onDelta func(delta string)) (Completion, error)
}
