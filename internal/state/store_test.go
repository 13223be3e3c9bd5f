package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelink/modelink/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := newTestStore(t)
	v, err := s.MigrationVersion()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, int64(1))
}

func TestRecordDownload_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	job := core.DownloadJob{
		ID:              "job-1",
		State:           core.JobCompleted,
		URL:             "https://example.com/m.safetensors",
		Filename:        "m.safetensors",
		Category:        "checkpoints",
		TargetPath:      "/models/checkpoints/m.safetensors",
		BytesDownloaded: 1024,
		BytesTotal:      1024,
		StartedAt:       time.Now().Add(-time.Minute),
	}
	require.NoError(t, s.RecordDownload(job))

	failed := job
	failed.ID = "job-2"
	failed.State = core.JobFailed
	failed.Error = "server returned status 502"
	require.NoError(t, s.RecordDownload(failed))

	records, err := s.ListRecentDownloads(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "job-2", records[0].ID)
	assert.Equal(t, core.JobFailed, records[0].State)
	assert.Equal(t, "server returned status 502", records[0].Error)
	assert.Equal(t, "job-1", records[1].ID)
	assert.Equal(t, int64(1024), records[1].BytesDownloaded)
	assert.Empty(t, records[1].Error)
}

func TestRecordDownload_RejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordDownload(core.DownloadJob{ID: "x", State: core.JobTransferring})
	assert.Error(t, err)
}

func TestRecordResolution_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordResolution(core.ModelReference{
		NodeID:       4,
		WidgetIndex:  0,
		Category:     "loras",
		OriginalPath: "detail.safetensors",
		SubgraphID:   "sg-1",
	}, "style/detail.safetensors"))
	require.NoError(t, s.RecordResolution(core.ModelReference{
		NodeID:       1,
		Category:     "checkpoints",
		OriginalPath: "a.ckpt",
	}, "sd15/a.ckpt"))

	records, err := s.ListRecentResolutions(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var subgraph *ResolutionRecord
	for i := range records {
		if records[i].SubgraphID != "" {
			subgraph = &records[i]
		}
	}
	require.NotNil(t, subgraph)
	assert.Equal(t, "sg-1", subgraph.SubgraphID)
	assert.Equal(t, "style/detail.safetensors", subgraph.ResolvedPath)
	assert.Equal(t, 4, subgraph.NodeID)
}

func TestListRecentDownloads_Empty(t *testing.T) {
	s := newTestStore(t)
	records, err := s.ListRecentDownloads(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
