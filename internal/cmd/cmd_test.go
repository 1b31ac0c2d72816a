package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/internal/testutil"
)

const snapshotYAML = `
instances:
  - {id: 10, class: Compartment, name: cytosol}
  - {id: 1, class: SimpleEntity, name: P1, refs: {inferredTo: [2], compartment: [10]}}
  - {id: 2, class: SimpleEntity, name: P2, refs: {relatedTo: [1], compartment: [10]}}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.Execute()
	return out.String(), err
}

func sourceArgs(t *testing.T) []string {
	return []string{
		"--schema", writeFile(t, "schema.yaml", testutil.SchemaYAML),
		"--snapshot", writeFile(t, "snapshot.yaml", snapshotYAML),
	}
}

func TestRun_Table(t *testing.T) {
	out, err := execute(t, append([]string{"run"}, sourceArgs(t)...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "InferredToCycles")
	assert.Contains(t, out, "relatedTo refers to inferral source P2")
	assert.Contains(t, out, "anomalies: 1")
}

func TestRun_JSONSelectedCheck(t *testing.T) {
	args := append([]string{"run", "-o", "json", "--check", "InferredToCycles"}, sourceArgs(t)...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	var run checks.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	require.Len(t, run.Results, 1)
	assert.Equal(t, "InferredToCycles", run.Results[0].Check)
	assert.Equal(t, []string{"1", "P1", "SimpleEntity", "relatedTo refers to inferral source P2", "No author"}, run.Results[0].Report.Rows[0])
}

func TestRun_FailOnAnomalies(t *testing.T) {
	_, err := execute(t, append([]string{"run", "--fail-on-anomalies"}, sourceArgs(t)...)...)
	assert.ErrorIs(t, err, ErrAnomaliesFound)
}

func TestRun_UnknownCheck(t *testing.T) {
	_, err := execute(t, append([]string{"run", "--check", "Nope"}, sourceArgs(t)...)...)
	assert.Error(t, err)
}

func TestPairs_JSON(t *testing.T) {
	schema := writeFile(t, "schema.yaml", testutil.SchemaYAML)
	out, err := execute(t, "pairs", "--schema", schema, "-o", "json")
	require.NoError(t, err)

	var views []pairView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	assert.Contains(t, views, pairView{A: "ReactionlikeEvent.input", B: "ReactionlikeEvent.output", ValueClass: "PhysicalEntity"})
	for _, v := range views {
		assert.Less(t, v.A, v.B)
	}
}

func TestPairs_Table(t *testing.T) {
	schema := writeFile(t, "schema.yaml", testutil.SchemaYAML)
	out, err := execute(t, "pairs", "--schema", schema, "--skip", "relatedTo")
	require.NoError(t, err)
	assert.Contains(t, out, "ReactionlikeEvent.input")
	assert.NotContains(t, out, "relatedTo")
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/latest", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("summary"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checks.RunSummary{
			ID:        "run-1",
			StartedAt: "2026-10-19T03:00:00Z",
			Anomalies: 3,
			Failed:    []string{"AttributeCollisions"},
			Checks:    map[string]int{"InferredToCycles": 3, "AttributeCollisions": 0},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "InferredToCycles")
	assert.Contains(t, out, "anomalies: 3  failed: 1")
}

func TestStatus_NoRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"no_run","message":"No run has completed"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "no run yet")
}

func TestStatus_TriggerConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"run_in_progress","message":"A run is already in progress"}}`))
	}))
	defer srv.Close()

	_, err := execute(t, "status", "--server", srv.URL, "--trigger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "release-qa dev")
}

func TestServerOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "snapshot only", mutate: func(c *config.Config) { c.QA.SnapshotPath = "snapshot.yaml" }},
		{name: "database", mutate: func(c *config.Config) {}},
		{name: "database with archive", mutate: func(c *config.Config) { c.Storage.Bucket = "qa-runs" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.NoError(t, fx.ValidateApp(serverOptions(cfg)...))
		})
	}
}
