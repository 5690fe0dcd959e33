package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// ErrorSink receives one line per retried failure.
type ErrorSink interface {
	WriteLine(text string)
}

// WriterSink adapts an io.Writer into an ErrorSink. Lines are written atomically.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing newline-terminated lines to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteLine writes text followed by a newline.
func (s *WriterSink) WriteLine(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, text+"\n")
}

// BackoffFunc returns the delay before retry attempt n (1-indexed).
type BackoffFunc func(attempt int, err error) time.Duration

// ExponentialBackoff doubles base on every attempt, capped at max (no cap when max <= 0).
// Throttled errors start from a base five times larger. A wait requested by the remote
// service through RetryAfter is the minimum delay, even above max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	limit := max
	if limit <= 0 {
		limit = math.MaxInt64
	}

	return func(attempt int, err error) time.Duration {
		b := base
		if KindOf(err) == KindThrottled {
			if b > limit/5 {
				b = limit
			} else {
				b = 5 * b
			}
		}

		shift := attempt - 1
		if shift < 0 {
			shift = 0
		}
		delay := limit
		if shift < 63 && b <= limit>>shift {
			delay = b << shift
		}

		if after, ok := RetryAfter(err); ok && after > delay {
			delay = after
		}
		return delay
	}
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// Kinds selects which failures are re-attempted. Other failures return immediately.
	Kinds KindSet

	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// Sink receives one line before every re-attempt. Nil discards the lines.
	Sink ErrorSink

	// Backoff computes the wait between attempts. Nil retries immediately.
	Backoff BackoffFunc

	// Observer is notified before each re-attempt. Nil disables notifications.
	Observer Observer
}

// Retry runs op until it succeeds, fails with a kind outside policy.Kinds, or has been
// attempted policy.MaxRetries+1 times. Each failure that is followed by another attempt is
// reported to policy.Sink; the error of the last attempt is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	retriesLeft := policy.MaxRetries
	if retriesLeft < 0 {
		retriesLeft = 0
	}

	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		kind := KindOf(err)
		if !policy.Kinds.Contains(kind) {
			return v, err
		}

		if retriesLeft == 0 {
			return v, err
		}
		retriesLeft--

		if policy.Sink != nil {
			policy.Sink.WriteLine(fmt.Sprintf("Error %v, %d retries left", err, retriesLeft))
		}

		if policy.Observer != nil {
			policy.Observer.Retried(kind)
		}

		if policy.Backoff != nil {
			if delay := policy.Backoff(attempt, err); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return v, err
				}
			}
		}
	}
}
