package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelink/modelink/pkg/core"
)

// debounceWindow coalesces bursts of filesystem events (a large model
// file being written arrives as many writes) into one rebuild.
const debounceWindow = 100 * time.Millisecond

// Watch watches every configured model directory and rebuilds the index
// when model files appear, change, or disappear. onChange, if non-nil,
// runs after each rebuild. Blocks until the context is cancelled.
func (ix *Index) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dirs := range ix.scanner.Roots() {
		for _, dir := range dirs {
			if err := watchDirRecursive(watcher, dir); err != nil {
				logger.Warn("failed to watch model directory", "dir", dir, "error", err)
				// Keep going; watching is best-effort.
			}
		}
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories need watching too.
			if event.Op&fsnotify.Create != 0 {
				_ = watchDirRecursive(watcher, event.Name)
			}
			if !core.IsModelFilename(event.Name) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				logger.Debug("model store changed, re-indexing", "path", event.Name)
				ix.Rebuild()
				if onChange != nil {
					onChange()
				}
			})

		case err := <-watcher.Errors:
			logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the
// watcher. Non-directories are ignored.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
