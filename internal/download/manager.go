// Package download runs tracked, cancellable model file transfers.
// Each job streams into a temporary file next to its destination and is
// renamed into place only on success, so an interrupted or cancelled
// transfer never leaves a partial model on disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelink/modelink/pkg/core"
)

const (
	partialSuffix = ".partial"
	copyChunkSize = 128 * 1024
	// rateWindow smooths the reported transfer rate.
	rateWindow = 3 * time.Second
)

var (
	// ErrJobNotFound means the job ID is unknown or its terminal snapshot
	// was already observed and the job evicted.
	ErrJobNotFound = errors.New("download job not found")
	// ErrFileExists means the destination file is already present.
	ErrFileExists = errors.New("destination file already exists")
	// ErrUnknownCategory means no configured directory accepts the category.
	ErrUnknownCategory = errors.New("no directory configured for category")
)

// TargetResolver maps a category to the directory downloads land in.
type TargetResolver interface {
	DirectoryFor(category string) (string, bool)
}

// CompletionFunc observes every job that reaches a terminal state.
type CompletionFunc func(job core.DownloadJob)

type job struct {
	snapshot core.DownloadJob
	cancel   context.CancelFunc
	// observed marks a terminal snapshot as already returned by Poll,
	// after which the job is evicted.
	observed bool

	// rate accounting, touched only under the manager lock.
	windowStart time.Time
	windowBytes int64
}

// Manager owns all download jobs. Jobs run independently; one failure
// or cancellation never affects another transfer.
type Manager struct {
	targets    TargetResolver
	client     *http.Client
	logger     *slog.Logger
	onComplete CompletionFunc

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// NewManager builds a manager. onComplete may be nil.
func NewManager(targets TargetResolver, onComplete CompletionFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		targets:    targets,
		client:     &http.Client{},
		logger:     logger,
		onComplete: onComplete,
		jobs:       make(map[string]*job),
	}
}

// Start begins a transfer and returns the new job's ID. The destination
// is <dir-for-category>/<filename>; starting fails when the category has
// no directory or the destination already exists.
func (m *Manager) Start(ctx context.Context, url, filename, category string) (string, error) {
	if url == "" || filename == "" {
		return "", fmt.Errorf("download needs url and filename")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	dir, ok := m.targets.DirectoryFor(category)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	target := filepath.Join(dir, filename)
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrFileExists, target)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating target directory: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		snapshot: core.DownloadJob{
			ID:         uuid.NewString(),
			State:      core.JobPending,
			URL:        url,
			Filename:   filename,
			Category:   category,
			TargetPath: target,
			StartedAt:  time.Now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.jobs[j.snapshot.ID] = j
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, j)

	m.logger.Info("download started", "id", j.snapshot.ID, "url", url, "target", target)
	return j.snapshot.ID, nil
}

// Poll returns a snapshot of the job. The first snapshot showing a
// terminal state evicts the job; later polls report ErrJobNotFound.
func (m *Manager) Poll(id string) (core.DownloadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return core.DownloadJob{}, ErrJobNotFound
	}
	snap := j.snapshot
	if snap.State.Terminal() {
		if j.observed {
			return core.DownloadJob{}, ErrJobNotFound
		}
		j.observed = true
		delete(m.jobs, id)
	}
	return snap, nil
}

// Cancel requests cooperative cancellation. Cancelling an already
// terminal or unknown job reports ErrJobNotFound.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok && j.snapshot.State.Terminal() {
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	j.cancel()
	return nil
}

// Active returns snapshots of every non-terminal job.
func (m *Manager) Active() []core.DownloadJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.DownloadJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if !j.snapshot.State.Terminal() {
			out = append(out, j.snapshot)
		}
	}
	return out
}

// Wait blocks until every running transfer goroutine has finished.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer j.cancel()

	partial := j.snapshot.TargetPath + partialSuffix
	err := m.transfer(ctx, j, partial)

	m.mu.Lock()
	switch {
	case err == nil:
		j.snapshot.State = core.JobCompleted
	case errors.Is(err, context.Canceled):
		j.snapshot.State = core.JobCancelled
	default:
		j.snapshot.State = core.JobFailed
		j.snapshot.Error = err.Error()
	}
	snap := j.snapshot
	m.mu.Unlock()

	if err != nil {
		os.Remove(partial)
		m.logger.Info("download ended", "id", snap.ID, "state", snap.State, "error", snap.Error)
	} else {
		m.logger.Info("download completed", "id", snap.ID, "target", snap.TargetPath,
			"bytes", snap.BytesDownloaded)
	}
	if m.onComplete != nil {
		m.onComplete(snap)
	}
}

func (m *Manager) transfer(ctx context.Context, j *job, partial string) error {
	m.setState(j, core.JobConnecting)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.snapshot.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("connecting: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("creating partial file: %w", err)
	}

	m.mu.Lock()
	j.snapshot.State = core.JobTransferring
	if resp.ContentLength > 0 {
		j.snapshot.BytesTotal = resp.ContentLength
	}
	j.windowStart = time.Now()
	m.mu.Unlock()

	buf := make([]byte, copyChunkSize)
	for {
		if ctx.Err() != nil {
			out.Close()
			return context.Canceled
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return fmt.Errorf("writing partial file: %w", werr)
			}
			m.account(j, int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			if ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("reading response: %w", rerr)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing partial file: %w", err)
	}
	if err := os.Rename(partial, j.snapshot.TargetPath); err != nil {
		return fmt.Errorf("moving file into place: %w", err)
	}
	return nil
}

func (m *Manager) setState(j *job, s core.JobState) {
	m.mu.Lock()
	j.snapshot.State = s
	m.mu.Unlock()
}

// account adds transferred bytes and refreshes the windowed rate.
func (m *Manager) account(j *job, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j.snapshot.BytesDownloaded += n
	j.windowBytes += n
	elapsed := time.Since(j.windowStart)
	if elapsed >= rateWindow {
		j.snapshot.Rate = float64(j.windowBytes) / elapsed.Seconds()
		j.windowStart = time.Now()
		j.windowBytes = 0
	} else if elapsed > 100*time.Millisecond {
		j.snapshot.Rate = float64(j.windowBytes) / elapsed.Seconds()
	}
}
