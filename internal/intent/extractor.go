// Package intent turns free-text household commands into structured
// intents.
//
// Extractors never fail: anything that goes wrong degrades to an UNSUPPORTED
// intent with confidence 0, which the orchestrator refuses to act on.
package intent

import (
	"context"

	"github.com/karanuppal/halo/internal/domain"
)

// Request is one extraction call.
type Request struct {
	Text        string
	HouseholdID string
	UserID      string

	// Answers maps clarification question ids to the user's answers from a
	// previous CLARIFY round.
	Answers map[string]string
}

// Extractor converts a command into an Intent.
type Extractor interface {
	Extract(ctx context.Context, req Request) domain.Intent
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, req Request) domain.Intent

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, req Request) domain.Intent {
	return f(ctx, req)
}
