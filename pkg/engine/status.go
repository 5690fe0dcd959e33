package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a sync run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every resource was synced.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates a resource failed and the run stopped.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the run was interrupted by the user.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// OperationType represents what a sync did to a remote resource.
type OperationType string

const (
	// OperationCreate indicates the resource did not exist remotely and was created.
	OperationCreate OperationType = "create"

	// OperationUpdate indicates an existing remote resource was updated.
	OperationUpdate OperationType = "update"

	// OperationNoop indicates nothing was sent (dry run).
	OperationNoop OperationType = "noop"
)

// IsMutating returns true if the operation changes remote state.
func (o OperationType) IsMutating() bool {
	return o == OperationCreate || o == OperationUpdate
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationCreate, OperationUpdate, OperationNoop:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// ItemStatus is the outcome of one resource within a run.
type ItemStatus string

const (
	// ItemStatusSucceeded indicates the resource was synced.
	ItemStatusSucceeded ItemStatus = "succeeded"

	// ItemStatusFailed indicates the resource returned an error.
	ItemStatusFailed ItemStatus = "failed"

	// ItemStatusSkipped indicates the resource was never started because the run stopped.
	ItemStatusSkipped ItemStatus = "skipped"
)

// Validate checks if the item status is valid.
func (s ItemStatus) Validate() error {
	switch s {
	case ItemStatusSucceeded, ItemStatusFailed, ItemStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid item status: %s", s)
	}
}

// ResourceKind is the type of a declared monitoring resource.
type ResourceKind string

const (
	KindMonitor   ResourceKind = "monitor"
	KindDashboard ResourceKind = "dashboard"
	KindSLO       ResourceKind = "slo"
	KindSynthetic ResourceKind = "synthetic"
)

// Validate checks if the resource kind is valid.
func (k ResourceKind) Validate() error {
	switch k {
	case KindMonitor, KindDashboard, KindSLO, KindSynthetic:
		return nil
	default:
		return fmt.Errorf("invalid resource kind: %s", k)
	}
}

// Collection returns the API path segment for the kind.
func (k ResourceKind) Collection() string {
	if k == KindSynthetic {
		return "synthetics/tests"
	}
	return string(k) + "s"
}
