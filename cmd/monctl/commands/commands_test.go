package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monctl/monctl/pkg/engine"
)

const resourcesYAML = `kind: monitor
project: web
id: cpu-10
name: CPU 10
spec:
  threshold: 10
---
kind: monitor
project: web
id: cpu-9
name: CPU 9
---
kind: dashboard
project: api
id: overview
name: API overview
`

// newTestAPI serves an always-empty monitoring service that accepts creates.
func newTestAPI(t *testing.T, status int) *httptest.Server {
	t.Helper()
	var next int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[]}`))
		case http.MethodPost:
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			body["id"] = fmt.Sprintf("r%d", atomic.AddInt64(&next, 1))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeProject lays out a config file and resource directory, returning the config path.
func writeProject(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "resources"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources", "all.yaml"), []byte(resourcesYAML), 0o644))

	cfg := fmt.Sprintf(`api:
  url: %s
  rate_limit: 0
execution:
  max_concurrency: 2
  max_retries: 0
resources:
  paths: [resources]
store:
  path: state/history.db
telemetry:
  log_level: error
  log_format: json
  tracing_exporter: none
`, apiURL)
	path := filepath.Join(dir, "monctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	cfg := writeProject(t, "http://localhost:1")

	out, err := execute(t, "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "3 resource(s) valid\n", out)
}

func TestValidateCommand_Invalid(t *testing.T) {
	cfg := writeProject(t, "http://localhost:1")
	bad := filepath.Join(filepath.Dir(cfg), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("kind: alarm\nproject: web\nid: x\nname: X\n"), 0o644))

	_, err := execute(t, "validate", "--config", cfg, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestPlanCommand_JSON(t *testing.T) {
	cfg := writeProject(t, "http://localhost:1")

	out, err := execute(t, "plan", "--config", cfg, "--json")
	require.NoError(t, err)

	var plan struct {
		Resources []engine.Resource `json:"resources"`
		Summary   engine.RunSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Resources, 3)
	assert.Equal(t, "api:overview", plan.Resources[0].TrackingID())
	assert.Equal(t, "web:cpu-9", plan.Resources[1].TrackingID())
	assert.Equal(t, "web:cpu-10", plan.Resources[2].TrackingID())
	assert.Equal(t, engine.RunSummary{Total: 3, Succeeded: 3}, plan.Summary)
}

func TestPlanCommand_Table(t *testing.T) {
	cfg := writeProject(t, "http://localhost:1")

	out, err := execute(t, "plan", "--config", cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "TRACKING ID")
	assert.Contains(t, lines[1], "api:overview")
	assert.Contains(t, lines[3], "web:cpu-10")
}

func TestSyncAndHistory(t *testing.T) {
	api := newTestAPI(t, 0)
	cfg := writeProject(t, api.URL)

	out, err := execute(t, "sync", "--config", cfg, "--json", "--user", "ci")
	require.NoError(t, err)

	var run engine.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, engine.RunStatusSucceeded, run.Status)
	assert.Equal(t, "ci", run.User)
	require.Len(t, run.Items, 3)
	for _, item := range run.Items {
		assert.Equal(t, engine.OperationCreate, item.Action)
		assert.NotEmpty(t, item.RemoteID)
	}

	out, err = execute(t, "history", "--config", cfg, "--json")
	require.NoError(t, err)
	var runs []engine.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	out, err = execute(t, "history", "--config", cfg, run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "web:cpu-10")
	assert.Contains(t, out, "3 succeeded")

	out, err = execute(t, "history", "prune", "--config", cfg, "--keep", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 run(s)")
}

func TestSyncCommand_Failure(t *testing.T) {
	api := newTestAPI(t, http.StatusBadRequest)
	cfg := writeProject(t, api.URL)

	out, err := execute(t, "sync", "--config", cfg, "--max-concurrency", "1")
	require.Error(t, err)
	assert.Equal(t, engine.KindPermanent, engine.KindOf(err))
	assert.Contains(t, out, "failed")
}

func TestSyncCommand_DryRunNoHistory(t *testing.T) {
	var hits int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer api.Close()
	cfg := writeProject(t, api.URL)

	out, err := execute(t, "sync", "--config", cfg, "--dry-run", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "noop")
	assert.Zero(t, atomic.LoadInt64(&hits))

	_, err = os.Stat(filepath.Join(filepath.Dir(cfg), "state", "history.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestSyncCommand_InvalidOverride(t *testing.T) {
	cfg := writeProject(t, "http://localhost:1")

	_, err := execute(t, "sync", "--config", cfg, "--max-retries", "-1")
	require.Error(t, err)
}
