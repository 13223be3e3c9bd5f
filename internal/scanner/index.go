package scanner

import (
	"sync"

	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/pkg/core"
)

// Index is the in-memory view of the local model store. It implements
// core.Store and is safe for concurrent readers; Rebuild swaps the whole
// snapshot under a write lock.
type Index struct {
	mu sync.RWMutex

	// all preserves scan order; ties in match ranking fall back to it.
	all []core.ModelFile

	// byPath maps "category|normalized-relative-path" to a file.
	byPath map[string]core.ModelFile

	scanner *Scanner
}

// NewIndex creates an empty index over a scanner.
func NewIndex(s *Scanner) *Index {
	return &Index{
		byPath:  make(map[string]core.ModelFile),
		scanner: s,
	}
}

// Rebuild rescans the store and atomically replaces the snapshot.
func (ix *Index) Rebuild() {
	files := ix.scanner.Scan()

	byPath := make(map[string]core.ModelFile, len(files))
	for _, f := range files {
		key := f.Category + "|" + matcher.NormalizePath(f.RelativePath)
		if _, exists := byPath[key]; !exists {
			byPath[key] = f
		}
	}

	ix.mu.Lock()
	ix.all = files
	ix.byPath = byPath
	ix.mu.Unlock()
}

// Lookup resolves a workflow path against the index by exact relative
// path. The category is tried first; a file under any other category
// still resolves when its relative path matches. A bare filename does
// not resolve to a copy living in a subdirectory; such a reference
// stays unresolved so the matcher can surface the relocated file as a
// candidate instead.
func (ix *Index) Lookup(category, path string) (core.ModelFile, bool) {
	norm := matcher.NormalizePath(path)
	c := CanonicalCategory(category)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if f, ok := ix.byPath[c+"|"+norm]; ok {
		return f, true
	}
	for key, f := range ix.byPath {
		if key[len(f.Category)+1:] == norm {
			return f, true
		}
	}
	return core.ModelFile{}, false
}

// Models returns the indexed files, category-matching files first.
func (ix *Index) Models(category string) []core.ModelFile {
	c := CanonicalCategory(category)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if c == "" || c == "unknown" {
		out := make([]core.ModelFile, len(ix.all))
		copy(out, ix.all)
		return out
	}
	same := make([]core.ModelFile, 0, len(ix.all))
	var rest []core.ModelFile
	for _, f := range ix.all {
		if f.Category == c {
			same = append(same, f)
		} else {
			rest = append(rest, f)
		}
	}
	return append(same, rest...)
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.all)
}

// CountByCategory returns indexed file counts per category.
func (ix *Index) CountByCategory() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	counts := make(map[string]int)
	for _, f := range ix.all {
		counts[f.Category]++
	}
	return counts
}
