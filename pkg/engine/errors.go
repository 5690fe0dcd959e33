package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorKind is the classification of an error for retry and reporting decisions.
// The set of kinds is closed; KindOf maps any error onto one of them.
type ErrorKind string

const (
	// KindTransient indicates a temporary failure that may succeed on retry.
	// Examples: connection resets, 5xx responses from the monitoring API.
	KindTransient ErrorKind = "transient"

	// KindThrottled indicates rate limiting by the remote service.
	KindThrottled ErrorKind = "throttled"

	// KindConflict indicates a concurrent modification of the remote resource.
	KindConflict ErrorKind = "conflict"

	// KindTimeout indicates an operation exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindPermanent indicates a non-recoverable error.
	// Examples: invalid resource body, permission denied.
	KindPermanent ErrorKind = "permanent"

	// KindUnknown is assigned to errors that carry no classification.
	KindUnknown ErrorKind = "unknown"
)

// AllKinds lists every ErrorKind.
var AllKinds = []ErrorKind{
	KindTransient,
	KindThrottled,
	KindConflict,
	KindTimeout,
	KindPermanent,
	KindUnknown,
}

// Valid reports whether k is one of the declared kinds.
func (k ErrorKind) Valid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Error represents a classified error with context.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the tracking id of the resource that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		fmt.Fprintf(&b, " (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		fmt.Fprintf(&b, " (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return newError(KindTransient, message, err)
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *Error {
	return newError(KindThrottled, message, err)
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return newError(KindConflict, message, err)
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *Error {
	return newError(KindTimeout, message, err)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return newError(KindPermanent, message, err)
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(trackingID string) *Error {
	e.Resource = trackingID
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// DetailRetryAfter is the Details key holding the number of seconds the remote service
// asked callers to wait before the next request.
const DetailRetryAfter = "retry_after"

// RetryAfter returns the wait requested by the remote service, if err carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	secs, ok := e.Details[DetailRetryAfter].(int)
	if !ok || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// KindOf returns the classification of err.
// The outermost *Error in the chain decides; a bare context deadline is a timeout.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsRetryable returns true if err belongs to DefaultRetryKinds.
func IsRetryable(err error) bool {
	return DefaultRetryKinds.Matches(err)
}

// KindSet is a set of error kinds, used to select which failures a retry policy re-attempts.
type KindSet map[ErrorKind]struct{}

// DefaultRetryKinds are the kinds retried when no explicit set is configured.
var DefaultRetryKinds = NewKindSet(KindTransient, KindThrottled, KindTimeout)

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...ErrorKind) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// ParseKindSet builds a set from configuration strings, rejecting unknown kinds.
func ParseKindSet(names []string) (KindSet, error) {
	s := make(KindSet, len(names))
	for _, name := range names {
		k := ErrorKind(strings.ToLower(strings.TrimSpace(name)))
		if !k.Valid() {
			return nil, fmt.Errorf("unknown error kind %q", name)
		}
		s[k] = struct{}{}
	}
	return s, nil
}

// Contains reports whether kind is in the set.
func (s KindSet) Contains(kind ErrorKind) bool {
	_, ok := s[kind]
	return ok
}

// Matches reports whether the kind of err is in the set.
func (s KindSet) Matches(err error) bool {
	if err == nil {
		return false
	}
	return s.Contains(KindOf(err))
}

// Strings returns the kinds in the set in sorted order.
func (s KindSet) Strings() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Common error codes.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeRemote      = "REMOTE_ERROR"
	ErrCodeTransport   = "TRANSPORT_ERROR"
	ErrCodeInternal    = "INTERNAL_ERROR"
)
