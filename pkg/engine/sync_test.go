package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock applier for testing
type mockApplier struct {
	mu       sync.Mutex
	applied  []string
	failures map[string][]error
}

func newMockApplier() *mockApplier {
	return &mockApplier{failures: make(map[string][]error)}
}

// failWith queues errors returned by successive Apply calls for trackingID.
func (m *mockApplier) failWith(trackingID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[trackingID] = append(m.failures[trackingID], errs...)
}

func (m *mockApplier) Apply(ctx context.Context, res Resource) (ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, res.TrackingID())
	if queued := m.failures[res.TrackingID()]; len(queued) > 0 {
		m.failures[res.TrackingID()] = queued[1:]
		return ApplyResult{}, queued[0]
	}
	return ApplyResult{RemoteID: "r-" + res.ID, Action: OperationCreate}, nil
}

func (m *mockApplier) getApplied() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.applied...)
}

// Mock run store for testing
type mockRunStore struct {
	mu      sync.Mutex
	runs    map[string]*Run
	saveErr error
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[string]*Run)}
}

func (m *mockRunStore) SaveRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[run.ID] = run
	return nil
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, errors.New("not found")
	}
	return run, nil
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return nil, nil
}

func sampleResources() []Resource {
	return []Resource{
		{Kind: KindMonitor, Project: "web", ID: "cpu-10", Name: "CPU 10"},
		{Kind: KindMonitor, Project: "web", ID: "cpu-9", Name: "CPU 9"},
		{Kind: KindDashboard, Project: "api", ID: "overview", Name: "Overview"},
		{Kind: KindSLO, Project: "web", ID: "latency", Name: "Latency"},
	}
}

func TestSyncer_Success(t *testing.T) {
	applier := newMockApplier()
	store := newMockRunStore()
	syncer := NewSyncer(applier, WithRunStore(store), WithSyncConcurrency(2))

	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{User: "ci"})
	require.NoError(t, err)

	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Equal(t, "ci", run.User)
	assert.NotEmpty(t, run.ID)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, RunSummary{Total: 4, Succeeded: 4}, run.Summary)

	ids := make([]string, len(run.Items))
	for i, item := range run.Items {
		ids[i] = item.TrackingID
		assert.Equal(t, i, item.Position)
		assert.Equal(t, ItemStatusSucceeded, item.Status)
		assert.Equal(t, OperationCreate, item.Action)
	}
	assert.Equal(t, []string{"api:overview", "web:cpu-9", "web:cpu-10", "web:latency"}, ids)
	assert.ElementsMatch(t, ids, applier.getApplied())

	saved, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Same(t, run, saved)
}

func TestSyncer_RetriesTransientErrors(t *testing.T) {
	applier := newMockApplier()
	applier.failWith("web:cpu-9", NewTransientError("502", nil), NewThrottledError("429", nil))
	sink := &recordingSink{}
	obs := newCountingObserver()

	syncer := NewSyncer(applier,
		WithRetryPolicy(RetryPolicy{Kinds: DefaultRetryKinds, MaxRetries: 2, Sink: sink}),
		WithSyncObserver(obs),
	)

	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Len(t, sink.getLines(), 2)
	assert.Len(t, applier.getApplied(), 6)
	assert.Equal(t, 4, obs.started)
	assert.Equal(t, map[ErrorKind]int{KindTransient: 1, KindThrottled: 1}, obs.retried)
}

func TestSyncer_FailureStopsRun(t *testing.T) {
	applier := newMockApplier()
	bad := NewPermanentError("invalid query", nil).WithResource("api:overview")
	applier.failWith("api:overview", bad)
	store := newMockRunStore()

	syncer := NewSyncer(applier, WithRunStore(store), WithSyncConcurrency(1))

	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{})
	require.Error(t, err)
	assert.Same(t, bad, err)

	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, bad.Error(), run.Error)
	assert.Equal(t, RunSummary{Total: 4, Failed: 1, Skipped: 3}, run.Summary)
	assert.Equal(t, ItemStatusFailed, run.Items[0].Status)
	assert.Equal(t, bad.Error(), run.Items[0].Error)
	assert.Equal(t, []string{"api:overview"}, applier.getApplied())

	_, err = store.GetRun(context.Background(), run.ID)
	assert.NoError(t, err, "failed runs are recorded too")
}

func TestSyncer_DryRun(t *testing.T) {
	applier := newMockApplier()
	syncer := NewSyncer(applier)

	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Empty(t, applier.getApplied())
	for _, item := range run.Items {
		assert.Equal(t, OperationNoop, item.Action)
	}
}

func TestSyncer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := NewSyncer(newMockApplier())
	run, err := syncer.Sync(ctx, sampleResources(), SyncOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunStatusCancelled, run.Status)
	assert.Equal(t, 4, run.Summary.Skipped)
}

func TestSyncer_SaveError(t *testing.T) {
	store := newMockRunStore()
	store.saveErr = errors.New("disk full")

	syncer := NewSyncer(newMockApplier(), WithRunStore(store))
	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, RunStatusSucceeded, run.Status)
}

type runSpanKey struct{}

type mockTracer struct {
	mu        sync.Mutex
	spans     map[string]error
	parents   map[string]string
	runStatus RunStatus
	runErr    error
}

func newMockTracer() *mockTracer {
	return &mockTracer{spans: make(map[string]error), parents: make(map[string]string)}
}

func (m *mockTracer) StartRunSpan(ctx context.Context, runID string) (context.Context, func(RunStatus, error)) {
	return context.WithValue(ctx, runSpanKey{}, runID), func(status RunStatus, err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.runStatus = status
		m.runErr = err
	}
}

func (m *mockTracer) StartResourceSpan(ctx context.Context, trackingID, kind string) (context.Context, func(error)) {
	parent, _ := ctx.Value(runSpanKey{}).(string)
	return ctx, func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.spans[trackingID] = err
		m.parents[trackingID] = parent
	}
}

func TestSyncer_Tracer(t *testing.T) {
	tracer := newMockTracer()
	syncer := NewSyncer(newMockApplier(), WithTracer(tracer))

	run, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{})
	require.NoError(t, err)
	assert.Len(t, tracer.spans, 4)
	assert.Equal(t, RunStatusSucceeded, tracer.runStatus)
	assert.NoError(t, tracer.runErr)

	// Resource spans start from the run span's context.
	for id, parent := range tracer.parents {
		assert.Equal(t, run.ID, parent, "resource %s", id)
	}
}

func TestSyncer_TracerRecordsFailedRun(t *testing.T) {
	applier := newMockApplier()
	applier.failWith("web:cpu-9", NewPermanentError("bad query", nil))
	tracer := newMockTracer()
	syncer := NewSyncer(applier, WithTracer(tracer), WithSyncConcurrency(1))

	_, err := syncer.Sync(context.Background(), sampleResources(), SyncOptions{})
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, tracer.runStatus)
	assert.Equal(t, err, tracer.runErr)
}

func TestSyncer_Empty(t *testing.T) {
	run, err := NewSyncer(newMockApplier()).Sync(context.Background(), nil, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Empty(t, run.Items)
}
