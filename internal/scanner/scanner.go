// Package scanner indexes the local model-file store.
//
// It walks the configured category directories, records every model file
// with its category and relative path, and serves lookups for the matcher
// and planner. The index is rebuilt wholesale on demand and on watcher
// events; readers always see a consistent snapshot.
package scanner

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelink/modelink/pkg/core"
)

// Scanner walks category directories and produces model file listings.
type Scanner struct {
	// roots maps category names to one or more base directories.
	roots  map[string][]string
	logger *slog.Logger
}

// New creates a scanner over the given category-to-directories mapping.
func New(roots map[string][]string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{roots: roots, logger: logger}
}

// Scan walks every configured directory and returns the files found.
// Unreadable directories are logged and skipped; a missing directory is
// not an error.
func (s *Scanner) Scan() []core.ModelFile {
	var files []core.ModelFile
	for category, dirs := range s.roots {
		for _, dir := range dirs {
			found := s.scanDir(category, dir)
			s.logger.Debug("scanned model directory", "category", category, "dir", dir, "files", len(found))
			files = append(files, found...)
		}
	}
	return files
}

// scanDir recursively walks one base directory for model files, skipping
// hidden directories.
func (s *Scanner) scanDir(category, dir string) []core.ModelFile {
	base, err := filepath.Abs(dir)
	if err != nil {
		s.logger.Warn("cannot resolve model directory", "dir", dir, "error", err)
		return nil
	}
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		return nil
	}

	var files []core.ModelFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("error scanning model directory", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !core.IsModelFilename(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			rel = d.Name()
		}
		size := int64(0)
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		files = append(files, core.ModelFile{
			Filename:     d.Name(),
			RelativePath: rel,
			AbsolutePath: p,
			Category:     category,
			BaseDir:      base,
			Size:         size,
		})
		return nil
	})
	if err != nil {
		s.logger.Warn("walk aborted", "dir", base, "error", err)
	}
	return files
}

// Roots returns the configured category-to-directories mapping.
func (s *Scanner) Roots() map[string][]string { return s.roots }

// categoryAliases normalizes category synonyms callers use to the
// configured directory keys.
var categoryAliases = map[string]string{
	"checkpoint":   "checkpoints",
	"lora":         "loras",
	"upscaler":     "upscale_models",
	"embedding":    "embeddings",
	"unet":         "diffusion_models",
	"text_encoder": "text_encoders",
	"ip-adapter":   "ipadapter",
}

// CanonicalCategory maps a caller-supplied category string to the
// configured key, falling back to the lower-cased input.
func CanonicalCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if canonical, ok := categoryAliases[c]; ok {
		return canonical
	}
	return c
}

// DirectoryFor returns the first configured directory for a category,
// honoring category aliases. The second return is false when the
// category has no configured directory.
func (s *Scanner) DirectoryFor(category string) (string, bool) {
	dirs, ok := s.roots[CanonicalCategory(category)]
	if !ok || len(dirs) == 0 {
		return "", false
	}
	return dirs[0], true
}
