package provider

import (
	"context"
)

// Result carries what the orchestration core needs from one provider call:
// the opaque response payload and token accounting. Brand extraction
// happens downstream and never in this module.
type Result struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// TaskExecutor performs one provider call for a prompt. Implementations are
// stateless and safe for concurrent use; the runner applies the per-task
// timeout through ctx.
type TaskExecutor interface {
	// ProviderID returns the stable provider identifier (e.g. "openai").
	ProviderID() string

	// Execute sends the prompt to the provider and returns the raw result.
	Execute(ctx context.Context, prompt string) (*Result, error)
}
