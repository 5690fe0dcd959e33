package engine

import (
	"time"
)

// Resource is a declared monitoring resource.
type Resource struct {
	// Kind is the resource type (monitor, dashboard, slo, synthetic).
	Kind ResourceKind `json:"kind" yaml:"kind"`

	// ID is the identifier of the resource within its project.
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable name sent to the monitoring service.
	Name string `json:"name" yaml:"name"`

	// Project groups resources; it is the first half of the tracking id.
	Project string `json:"project" yaml:"project"`

	// Spec is the resource body, passed through to the API as-is.
	Spec map[string]interface{} `json:"spec,omitempty" yaml:"spec,omitempty"`

	// Source is the file the resource was loaded from.
	Source string `json:"source,omitempty" yaml:"-"`
}

// TrackingID identifies the resource across syncs: "project:id".
func (r Resource) TrackingID() string {
	return r.Project + ":" + r.ID
}

// ApplyResult is what the monitoring service reported after applying a resource.
type ApplyResult struct {
	// RemoteID is the identifier assigned by the monitoring service.
	RemoteID string `json:"remote_id"`

	// Action is the operation that was performed.
	Action OperationType `json:"action"`
}

// RunItem records the outcome of one resource within a run.
type RunItem struct {
	// Position is the index of the resource in the run.
	Position int `json:"position"`

	// TrackingID identifies the resource.
	TrackingID string `json:"tracking_id"`

	// Kind is the resource kind.
	Kind ResourceKind `json:"kind"`

	// Status is the outcome.
	Status ItemStatus `json:"status"`

	// Action is the operation performed, when the item succeeded.
	Action OperationType `json:"action,omitempty"`

	// RemoteID is the identifier assigned by the monitoring service.
	RemoteID string `json:"remote_id,omitempty"`

	// Error is the error message, when the item failed.
	Error string `json:"error,omitempty"`

	// Duration is how long the item took including retries.
	Duration time.Duration `json:"duration"`
}

// Run is one execution of a sync over a set of resources.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`

	// Status is the current status of the run.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// User is the user who initiated the run.
	User string `json:"user,omitempty"`

	// DryRun is set when nothing was sent to the monitoring service.
	DryRun bool `json:"dry_run"`

	// Error is the error that stopped the run, if any.
	Error string `json:"error,omitempty"`

	// Summary provides statistics about the run.
	Summary RunSummary `json:"summary"`

	// Items holds one entry per resource, in natural tracking id order.
	Items []RunItem `json:"items,omitempty"`
}

// RunSummary provides statistics about a run.
type RunSummary struct {
	// Total is the total number of resources.
	Total int `json:"total"`

	// Succeeded is the number of resources that were synced.
	Succeeded int `json:"succeeded"`

	// Failed is the number of resources that failed.
	Failed int `json:"failed"`

	// Skipped is the number of resources never started.
	Skipped int `json:"skipped"`
}

// Summarize counts items by status.
func Summarize(items []RunItem) RunSummary {
	summary := RunSummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case ItemStatusSucceeded:
			summary.Succeeded++
		case ItemStatusFailed:
			summary.Failed++
		case ItemStatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}
