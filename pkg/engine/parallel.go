package engine

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one independent, fallible unit of work submitted to Parallel.
// Its identity is its index in the submitted slice.
type Job[T any] func(ctx context.Context) (T, error)

// Observer receives execution callbacks from Parallel and Retry.
// Implementations must be safe for concurrent use.
type Observer interface {
	// JobStarted is called when a worker claims a job.
	JobStarted()

	// JobFinished is called when a job returns.
	JobFinished(duration time.Duration, err error)

	// Retried is called before a failed attempt of the given kind is re-attempted.
	Retried(kind ErrorKind)
}

type nopObserver struct{}

func (nopObserver) JobStarted() {}
func (nopObserver) JobFinished(time.Duration, error) {}
func (nopObserver) Retried(ErrorKind) {}

type parallelOptions struct {
	maxConcurrency int
	observer       Observer
}

// ParallelOption configures a Parallel call.
type ParallelOption func(*parallelOptions)

// WithMaxConcurrency caps the number of jobs executing at once.
// Values <= 0 mean one worker per job.
func WithMaxConcurrency(n int) ParallelOption {
	return func(o *parallelOptions) {
		o.maxConcurrency = n
	}
}

// WithObserver attaches an Observer to the call.
func WithObserver(obs Observer) ParallelOption {
	return func(o *parallelOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Parallel runs jobs on a bounded pool of goroutines and returns their results in input order.
//
// The first observed error stops workers from claiming further jobs. Jobs already running
// are not interrupted; their results are discarded once they return. Parallel waits for
// every worker before returning, then returns either all results or exactly one of the
// errors produced, unchanged.
func Parallel[T any](ctx context.Context, jobs []Job[T], opts ...ParallelOption) ([]T, error) {
	n := len(jobs)
	if n == 0 {
		return []T{}, nil
	}

	options := parallelOptions{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&options)
	}

	workers := options.maxConcurrency
	if workers <= 0 || workers > n {
		workers = n
	}

	results := make([]T, n)

	var (
		// cursor is the index of the next unclaimed job.
		cursor  atomic.Int64
		stopped atomic.Bool
		g       errgroup.Group
	)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if stopped.Load() {
					return nil
				}
				if err := ctx.Err(); err != nil {
					stopped.Store(true)
					return err
				}

				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}

				options.observer.JobStarted()
				start := time.Now()
				v, err := jobs[i](ctx)
				options.observer.JobFinished(time.Since(start), err)

				if err != nil {
					stopped.Store(true)
					return err
				}
				results[i] = v
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Map runs fn against every item through Parallel and returns the outputs in item order.
func Map[In, Out any](
	ctx context.Context,
	items []In,
	fn func(ctx context.Context, item In) (Out, error),
	opts ...ParallelOption,
) ([]Out, error) {
	jobs := make([]Job[Out], len(items))
	for i := range items {
		item := items[i]
		jobs[i] = func(ctx context.Context) (Out, error) {
			return fn(ctx, item)
		}
	}
	return Parallel(ctx, jobs, opts...)
}
