package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monctl/monctl/pkg/engine"
)

type reloadRecorder struct {
	mu    sync.Mutex
	calls [][]engine.Resource
	ch    chan struct{}
}

func newReloadRecorder() *reloadRecorder {
	return &reloadRecorder{ch: make(chan struct{}, 10)}
}

func (r *reloadRecorder) reload(ctx context.Context, resources []engine.Resource) error {
	r.mu.Lock()
	r.calls = append(r.calls, resources)
	r.mu.Unlock()
	r.ch <- struct{}{}
	return nil
}

func (r *reloadRecorder) wait(t *testing.T) []engine.Resource {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func startWatcher(t *testing.T, w *Watcher, rec *reloadRecorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, rec.reload) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// Let the watcher register its paths before files change.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_ReloadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "monitors.yaml"), monitorsYAML)

	rec := newReloadRecorder()
	startWatcher(t, NewWatcher([]string{dir}, WithDebounce(20*time.Millisecond)), rec)

	writeFile(t, filepath.Join(dir, "slo.yaml"), "kind: slo\nproject: api\nid: latency\nname: Latency\n")
	resources := rec.wait(t)
	assert.Len(t, resources, 3)
}

func TestWatcher_ReloadsExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitors.yaml")
	writeFile(t, path, monitorsYAML)

	rec := newReloadRecorder()
	startWatcher(t, NewWatcher([]string{path}, WithDebounce(20*time.Millisecond)), rec)

	writeFile(t, path, "kind: monitor\nproject: web\nid: only\nname: Only\n")
	resources := rec.wait(t)
	require.Len(t, resources, 1)
	assert.Equal(t, "web:only", resources[0].TrackingID())
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitors.yaml")
	writeFile(t, path, monitorsYAML)

	rec := newReloadRecorder()
	startWatcher(t, NewWatcher([]string{path}, WithDebounce(20*time.Millisecond)), rec)

	writeFile(t, filepath.Join(dir, "other.yaml"), monitorsYAML)
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	select {
	case <-rec.ch:
		t.Fatal("unexpected reload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	rec := newReloadRecorder()
	writeFile(t, filepath.Join(dir, "base.yaml"), monitorsYAML)
	startWatcher(t, NewWatcher([]string{dir}, WithDebounce(150*time.Millisecond)), rec)

	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(dir, "base.yaml"), monitorsYAML)
	}
	rec.wait(t)

	select {
	case <-rec.ch:
		t.Fatal("burst produced more than one reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_MissingPath(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")})
	err := w.Watch(context.Background(), func(context.Context, []engine.Resource) error { return nil })
	assert.Error(t, err)
}

func TestWatcher_WatchCreatedLogsFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new")
	require.NoError(t, os.Mkdir(dir, 0o755))

	var buf bytes.Buffer
	w := NewWatcher([]string{filepath.Dir(dir)}, WithWatchLogger(zerolog.New(&buf)))

	fsw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	require.NoError(t, fsw.Close())

	w.watchCreated(fsw, dir)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Failed to watch new directory")
	assert.Contains(t, buf.String(), dir)
}

func TestWatcher_WatchCreatedIgnoresFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.yaml")
	writeFile(t, path, monitorsYAML)

	var buf bytes.Buffer
	w := NewWatcher([]string{path}, WithWatchLogger(zerolog.New(&buf)))

	fsw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	require.NoError(t, fsw.Close())

	w.watchCreated(fsw, path)
	assert.Empty(t, buf.String())
}
