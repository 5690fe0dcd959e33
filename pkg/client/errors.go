package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/monctl/monctl/pkg/engine"
)

// classifyStatus maps a non-2xx response to an engine error kind.
func classifyStatus(status int, message, retryAfter string) error {
	msg := fmt.Sprintf("HTTP %d", status)
	if message != "" {
		msg += ": " + message
	}

	var err *engine.Error
	switch {
	case status == http.StatusTooManyRequests:
		err = engine.NewThrottledError(msg, nil).WithCode(engine.ErrCodeRateLimited)
		if secs, perr := strconv.Atoi(retryAfter); perr == nil {
			err = err.WithDetail(engine.DetailRetryAfter, secs)
		}
	case status == http.StatusConflict:
		err = engine.NewConflictError(msg, nil).WithCode(engine.ErrCodeConflict)
	case status == http.StatusRequestTimeout:
		err = engine.NewTransientError(msg, nil).WithCode(engine.ErrCodeTimeout)
	case status >= 500:
		err = engine.NewTransientError(msg, nil).WithCode(engine.ErrCodeRemote)
	case status == http.StatusNotFound:
		err = engine.NewPermanentError(msg, nil).WithCode(engine.ErrCodeNotFound)
	case status >= 400:
		err = engine.NewPermanentError(msg, nil).WithCode(engine.ErrCodeValidation)
	default:
		err = engine.NewPermanentError(msg, nil).WithCode(engine.ErrCodeRemote)
	}
	return err.WithDetail("status", status)
}

// classifyTransport maps a failed round trip to an engine error kind.
// Cancellation is returned wrapped but unclassified so callers still see context.Canceled.
func classifyTransport(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request cancelled: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return engine.NewTimeoutError("request deadline exceeded", err).WithCode(engine.ErrCodeTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return engine.NewTimeoutError("request timed out", err).WithCode(engine.ErrCodeTimeout)
	}
	return engine.NewTransientError("request failed", err).WithCode(engine.ErrCodeTransport)
}
