package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelink/modelink/pkg/core"
)

type staticTargets struct {
	dirs map[string]string
}

func (s staticTargets) DirectoryFor(category string) (string, bool) {
	d, ok := s.dirs[category]
	return d, ok
}

func newTestManager(t *testing.T, onComplete CompletionFunc) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(staticTargets{dirs: map[string]string{"checkpoints": dir}}, onComplete, nil)
	return m, dir
}

func pollUntilTerminal(t *testing.T, m *Manager, id string) core.DownloadJob {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		snap, err := m.Poll(id)
		require.NoError(t, err)
		if snap.State.Terminal() {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state (last: %s)", id, snap.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManager_CompletedDownloadLandsAtTarget(t *testing.T) {
	body := strings.Repeat("w", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write([]byte(body))
	}))
	defer srv.Close()

	var completed []core.DownloadJob
	m, dir := newTestManager(t, func(j core.DownloadJob) { completed = append(completed, j) })

	id, err := m.Start(context.Background(), srv.URL, "model.safetensors", "checkpoints")
	require.NoError(t, err)

	snap := pollUntilTerminal(t, m, id)
	m.Wait()

	assert.Equal(t, core.JobCompleted, snap.State)
	assert.Equal(t, int64(len(body)), snap.BytesDownloaded)
	assert.Equal(t, int64(len(body)), snap.BytesTotal)
	assert.Equal(t, 100, snap.Percent())

	data, err := os.ReadFile(filepath.Join(dir, "model.safetensors"))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.NoFileExists(t, filepath.Join(dir, "model.safetensors"+partialSuffix))

	require.Len(t, completed, 1)
	assert.Equal(t, core.JobCompleted, completed[0].State)
}

func TestManager_TerminalSnapshotObservedOnceThenEvicted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m, _ := newTestManager(t, nil)
	id, err := m.Start(context.Background(), srv.URL, "m.safetensors", "checkpoints")
	require.NoError(t, err)

	snap := pollUntilTerminal(t, m, id)
	assert.Equal(t, core.JobCompleted, snap.State)

	_, err = m.Poll(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManager_CancelRemovesPartialFile(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte(strings.Repeat("x", 1024)))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	m, dir := newTestManager(t, nil)
	id, err := m.Start(context.Background(), srv.URL, "big.safetensors", "checkpoints")
	require.NoError(t, err)

	// Wait for the transfer to actually begin before cancelling.
	require.Eventually(t, func() bool {
		snap, err := m.Poll(id)
		return err == nil && snap.State == core.JobTransferring && snap.BytesDownloaded > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Cancel(id))
	snap := pollUntilTerminal(t, m, id)
	m.Wait()

	assert.Equal(t, core.JobCancelled, snap.State)
	assert.NoFileExists(t, filepath.Join(dir, "big.safetensors"))
	assert.NoFileExists(t, filepath.Join(dir, "big.safetensors"+partialSuffix))
}

func TestManager_ServerErrorFailsJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m, dir := newTestManager(t, nil)
	id, err := m.Start(context.Background(), srv.URL, "gone.safetensors", "checkpoints")
	require.NoError(t, err)

	snap := pollUntilTerminal(t, m, id)
	m.Wait()

	assert.Equal(t, core.JobFailed, snap.State)
	assert.Contains(t, snap.Error, "404")
	assert.NoFileExists(t, filepath.Join(dir, "gone.safetensors"))
	assert.NoFileExists(t, filepath.Join(dir, "gone.safetensors"+partialSuffix))
}

func TestManager_StartRejectsExistingDestination(t *testing.T) {
	m, dir := newTestManager(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "have.safetensors"), []byte("x"), 0o644))

	_, err := m.Start(context.Background(), "http://unused", "have.safetensors", "checkpoints")
	assert.ErrorIs(t, err, ErrFileExists)
}

func TestManager_StartRejectsUnknownCategory(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.Start(context.Background(), "http://unused", "x.safetensors", "nonsense")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestManager_StartRejectsPathTraversal(t *testing.T) {
	m, _ := newTestManager(t, nil)
	for _, name := range []string{"../evil.safetensors", "a/b.safetensors", `a\b.safetensors`} {
		_, err := m.Start(context.Background(), "http://unused", name, "checkpoints")
		assert.Error(t, err, name)
	}
}

func TestManager_JobsAreIndependent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer srv.Close()

	m, dir := newTestManager(t, nil)
	good, err := m.Start(context.Background(), srv.URL+"/good", "good.safetensors", "checkpoints")
	require.NoError(t, err)
	bad, err := m.Start(context.Background(), srv.URL+"/bad", "bad.safetensors", "checkpoints")
	require.NoError(t, err)

	goodSnap := pollUntilTerminal(t, m, good)
	badSnap := pollUntilTerminal(t, m, bad)
	m.Wait()

	assert.Equal(t, core.JobCompleted, goodSnap.State)
	assert.Equal(t, core.JobFailed, badSnap.State)
	assert.FileExists(t, filepath.Join(dir, "good.safetensors"))
	assert.NoFileExists(t, filepath.Join(dir, "bad.safetensors"))
}

func TestManager_PollUnknownJob(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.Poll("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, m.Cancel("nope"), ErrJobNotFound)
}
