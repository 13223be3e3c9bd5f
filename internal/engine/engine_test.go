package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelink/modelink/internal/config"
	"github.com/modelink/modelink/internal/planner"
	"github.com/modelink/modelink/pkg/core"
)

// newTestEngine builds an engine over a temp model library with the
// live catalogs pointed at a local server that knows nothing.
func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	}))
	t.Cleanup(srv.Close)

	base := t.TempDir()
	for _, cat := range []string{"checkpoints", "loras", "vae"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, cat), 0o755))
	}

	cfg := &config.Config{
		BaseDir:        base,
		StatePath:      ":memory:",
		CatalogTimeout: 2 * time.Second,
		HuggingFace:    config.APIConfig{Endpoint: srv.URL},
		Civitai:        config.APIConfig{Endpoint: srv.URL},
	}
	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, base
}

func addModel(t *testing.T, base, category, rel string) {
	t.Helper()
	path := filepath.Join(base, category, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
}

const workflowJSON = `{
  "nodes": [
    {"id": 1, "type": "CheckpointLoaderSimple", "widgets_values": ["lost_model.safetensors"]},
    {"id": 2, "type": "VAELoader", "widgets_values": ["present.safetensors"]}
  ]
}`

func TestEngine_AnalyzeFindsMissing(t *testing.T) {
	e, base := newTestEngine(t)
	addModel(t, base, "vae", "present.safetensors")
	e.Rescan()

	a, err := e.Analyze(context.Background(), []byte(workflowJSON))
	require.NoError(t, err)
	require.Equal(t, 1, a.TotalMissing)
	assert.Equal(t, "lost_model.safetensors", a.Missing[0].OriginalPath)
	assert.Equal(t, "checkpoints", a.Missing[0].Category)
}

func TestEngine_AutoResolveRelocatedModel(t *testing.T) {
	e, base := newTestEngine(t)
	addModel(t, base, "vae", "present.safetensors")
	addModel(t, base, "checkpoints", "sd15/lost_model.safetensors")
	e.Rescan()

	patched, count, unresolved, err := e.AutoResolve(context.Background(), []byte(workflowJSON))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, unresolved)

	a, err := e.Analyze(context.Background(), patched)
	require.NoError(t, err)
	assert.Zero(t, a.TotalMissing)
}

func TestEngine_ResolveRejectsUnknownNode(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Resolve(context.Background(), []byte(workflowJSON), []planner.Resolution{
		{NodeID: 999, WidgetIndex: 0, ResolvedPath: "x.safetensors"},
	})
	require.Error(t, err)
}

func TestEngine_ResolveRecordsHistory(t *testing.T) {
	e, _ := newTestEngine(t)

	patched, err := e.Resolve(context.Background(), []byte(workflowJSON), []planner.Resolution{
		{NodeID: 1, WidgetIndex: 0, ResolvedPath: "sd15/lost_model.safetensors"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(patched), "sd15/lost_model.safetensors")

	records, err := e.ResolutionHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sd15/lost_model.safetensors", records[0].ResolvedPath)
}

func TestEngine_DownloadIntoLibraryAndReindex(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("model bytes"))
	}))
	defer fileSrv.Close()

	e, base := newTestEngine(t)

	id, err := e.StartDownload(context.Background(), fileSrv.URL, "fresh.safetensors", "checkpoints")
	require.NoError(t, err)

	deadline := time.After(10 * time.Second)
	var snap core.DownloadJob
	for {
		snap, err = e.Progress(id)
		require.NoError(t, err)
		if snap.State.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("download never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Equal(t, core.JobCompleted, snap.State)
	assert.FileExists(t, filepath.Join(base, "checkpoints", "fresh.safetensors"))

	// Terminal snapshot was observed; the job is gone.
	_, err = e.Progress(id)
	assert.Error(t, err)

	// Completion recorded and the index now sees the file.
	history, err := e.DownloadHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.JobCompleted, history[0].State)

	require.Eventually(t, func() bool {
		_, ok := e.Index().Lookup("checkpoints", "fresh.safetensors")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEngine_SearchUsesBundledCatalogs(t *testing.T) {
	e, _ := newTestEngine(t)

	res := e.Search(context.Background(), "sdxl_vae.safetensors", "vae")
	require.NotNil(t, res.Popular)
	assert.Equal(t, core.SourceCuratedPopular, res.Popular.Kind)
	require.NotNil(t, res.ModelList)
}
