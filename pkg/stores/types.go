package stores

import (
	"context"
	"errors"

	"github.com/monctl/monctl/pkg/engine"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the run history persistence layer.
type Store interface {
	engine.RunStore

	// ListRunItems returns the items of a run in position order.
	ListRunItems(ctx context.Context, runID string) ([]engine.RunItem, error)

	// PruneRuns keeps the newest keep runs and deletes the rest.
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// HealthCheck verifies the database is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the database.
	Close() error
}
