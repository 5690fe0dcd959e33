package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Syncer applies declared resources to the monitoring service.
// Each resource becomes one retried job; the jobs run through Parallel.
type Syncer struct {
	// applier pushes individual resources
	applier Applier

	// store records run history; nil disables recording
	store RunStore

	// retry is applied around every Apply call
	retry RetryPolicy

	// maxConcurrency bounds in-flight Apply calls
	maxConcurrency int

	observer Observer
	tracer   Tracer
	logger   zerolog.Logger
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithRunStore records every run in store.
func WithRunStore(store RunStore) SyncerOption {
	return func(s *Syncer) {
		s.store = store
	}
}

// WithRetryPolicy sets the policy wrapped around each Apply call.
func WithRetryPolicy(policy RetryPolicy) SyncerOption {
	return func(s *Syncer) {
		s.retry = policy
	}
}

// WithSyncConcurrency bounds the number of concurrent Apply calls.
func WithSyncConcurrency(n int) SyncerOption {
	return func(s *Syncer) {
		s.maxConcurrency = n
	}
}

// WithSyncObserver attaches an Observer to both the executor and the retry policy.
func WithSyncObserver(obs Observer) SyncerOption {
	return func(s *Syncer) {
		s.observer = obs
	}
}

// WithTracer wraps the run and every resource in spans.
func WithTracer(t Tracer) SyncerOption {
	return func(s *Syncer) {
		s.tracer = t
	}
}

// WithLogger sets the logger used for run-level messages.
func WithLogger(logger zerolog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer creates a new syncer.
func NewSyncer(applier Applier, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		applier: applier,
		retry: RetryPolicy{
			Kinds:      DefaultRetryKinds,
			MaxRetries: 2,
		},
		maxConcurrency: 10,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer != nil && s.retry.Observer == nil {
		s.retry.Observer = s.observer
	}
	return s
}

// SyncOptions contains per-run options.
type SyncOptions struct {
	// DryRun skips the applier; every item reports a noop.
	DryRun bool

	// User is recorded on the run.
	User string
}

// Sync applies resources and returns the recorded run. The run is returned even when
// err is non-nil; items of resources that never started are marked skipped.
func (s *Syncer) Sync(ctx context.Context, resources []Resource, opts SyncOptions) (*Run, error) {
	ordered := make([]Resource, len(resources))
	copy(ordered, resources)
	SortNaturalFunc(ordered, Resource.TrackingID)

	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
		User:      opts.User,
		DryRun:    opts.DryRun,
	}

	logger := s.logger.With().Str("run_id", run.ID).Logger()
	logger.Info().
		Int("resources", len(ordered)).
		Int("max_concurrency", s.maxConcurrency).
		Bool("dry_run", opts.DryRun).
		Msg("Sync started")

	// Each job writes only its own slot.
	items := make([]RunItem, len(ordered))
	jobs := make([]Job[ApplyResult], len(ordered))
	for i := range ordered {
		res := ordered[i]
		items[i] = RunItem{
			Position:   i,
			TrackingID: res.TrackingID(),
			Kind:       res.Kind,
			Status:     ItemStatusSkipped,
		}
		jobs[i] = func(ctx context.Context) (ApplyResult, error) {
			return s.syncOne(ctx, res, opts, &items[i])
		}
	}

	endRun := func(RunStatus, error) {}
	if s.tracer != nil {
		ctx, endRun = s.tracer.StartRunSpan(ctx, run.ID)
	}

	parallelOpts := []ParallelOption{WithMaxConcurrency(s.maxConcurrency)}
	if s.observer != nil {
		parallelOpts = append(parallelOpts, WithObserver(s.observer))
	}
	_, err := Parallel(ctx, jobs, parallelOpts...)

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.Duration = completedAt.Sub(run.StartedAt)
	run.Items = items
	run.Summary = Summarize(items)

	switch {
	case err == nil:
		run.Status = RunStatusSucceeded
	case errors.Is(err, context.Canceled):
		run.Status = RunStatusCancelled
		run.Error = err.Error()
	default:
		run.Status = RunStatusFailed
		run.Error = err.Error()
	}

	endRun(run.Status, err)

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Str("status", string(run.Status)).
		Int("succeeded", run.Summary.Succeeded).
		Int("failed", run.Summary.Failed).
		Int("skipped", run.Summary.Skipped).
		Dur("duration", run.Duration).
		Msg("Sync finished")

	if s.store != nil {
		if saveErr := s.store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
			if err == nil {
				return run, fmt.Errorf("failed to save run: %w", saveErr)
			}
			logger.Warn().Err(saveErr).Msg("Failed to save run")
		}
	}

	return run, err
}

// syncOne applies a single resource with retries and fills in its item.
func (s *Syncer) syncOne(ctx context.Context, res Resource, opts SyncOptions, item *RunItem) (ApplyResult, error) {
	if s.tracer == nil {
		return s.apply(ctx, res, opts, item)
	}
	ctx, end := s.tracer.StartResourceSpan(ctx, item.TrackingID, string(res.Kind))
	result, err := s.apply(ctx, res, opts, item)
	end(err)
	return result, err
}

func (s *Syncer) apply(ctx context.Context, res Resource, opts SyncOptions, item *RunItem) (ApplyResult, error) {
	start := time.Now()

	var (
		result ApplyResult
		err    error
	)
	if opts.DryRun {
		result = ApplyResult{Action: OperationNoop}
	} else {
		result, err = Retry(ctx, s.retry, func(ctx context.Context) (ApplyResult, error) {
			return s.applier.Apply(ctx, res)
		})
	}

	item.Duration = time.Since(start)
	if err != nil {
		item.Status = ItemStatusFailed
		item.Error = err.Error()
		return result, err
	}

	item.Status = ItemStatusSucceeded
	item.Action = result.Action
	item.RemoteID = result.RemoteID
	return result, nil
}
