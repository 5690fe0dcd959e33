package engine

import (
	"context"
)

// Applier pushes a resource to the monitoring service.
type Applier interface {
	// Apply creates or updates the remote counterpart of res.
	Apply(ctx context.Context, res Resource) (ApplyResult, error)
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, res Resource) (ApplyResult, error)

// Apply calls f(ctx, res).
func (f ApplierFunc) Apply(ctx context.Context, res Resource) (ApplyResult, error) {
	return f(ctx, res)
}

// RunStore persists run history.
type RunStore interface {
	// SaveRun inserts or replaces a run together with its items.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run and its items by ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns the most recent runs without items, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Tracer starts spans around a run and each resource sync within it.
// The returned functions end the spans.
type Tracer interface {
	StartRunSpan(ctx context.Context, runID string) (context.Context, func(status RunStatus, err error))
	StartResourceSpan(ctx context.Context, trackingID, kind string) (context.Context, func(err error))
}
