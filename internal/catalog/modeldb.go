package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/pkg/core"
)

//go:embed data/model-list.json
var modelDBEmbedded []byte

type dbEntry struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Directory string `json:"directory"`
	Size      int64  `json:"size"`
}

type dbFile struct {
	Models []dbEntry `json:"models"`
}

// Fuzzy tiers tried in order. A substring hit between normalized names
// is a stronger signal than raw similarity, so it gets the lower bar.
const (
	substringMinSimilarity = 0.5
	fuzzyMinSimilarity     = 0.6
)

// ModelDB is the bundled model database. Unlike the curated list it is
// searched fuzzily, so a close-but-not-equal filename can still yield a
// download source.
type ModelDB struct {
	entries []dbEntry
	byBase  map[string]int
}

// LoadModelDB reads a model database from path, or the embedded copy
// when path is empty.
func LoadModelDB(path string) (*ModelDB, error) {
	raw := modelDBEmbedded
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading model database: %w", err)
		}
		raw = b
	}

	var df dbFile
	if err := json.Unmarshal(raw, &df); err != nil {
		return nil, fmt.Errorf("parsing model database: %w", err)
	}

	db := &ModelDB{
		entries: df.Models,
		byBase:  make(map[string]int, len(df.Models)),
	}
	for i, e := range df.Models {
		db.byBase[matcher.NormalizePath(e.Filename)] = i
	}
	return db, nil
}

// Lookup resolves a reference against the database. Exact basename
// matches win; otherwise entries whose normalized names contain one
// another are tried, then the whole list by similarity.
func (db *ModelDB) Lookup(ref core.ModelReference) (*core.DownloadSource, bool) {
	base := matcher.Basename(ref.OriginalPath)
	norm := matcher.NormalizePath(base)

	if i, ok := db.byBase[norm]; ok {
		return db.source(db.entries[i], ref, core.MatchExact, 0), true
	}

	wantName := matcher.NormalizeName(base)
	bestIdx, bestSim := -1, 0.0
	for i, e := range db.entries {
		en := matcher.NormalizeName(e.Filename)
		if !strings.Contains(en, wantName) && !strings.Contains(wantName, en) {
			continue
		}
		if sim := matcher.Similarity(base, e.Filename); sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}
	if bestIdx >= 0 && bestSim > substringMinSimilarity {
		return db.source(db.entries[bestIdx], ref, core.MatchFuzzy, fuzzyConfidence(bestSim)), true
	}

	bestIdx, bestSim = -1, 0.0
	for i, e := range db.entries {
		if sim := matcher.Similarity(base, e.Filename); sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}
	if bestIdx >= 0 && bestSim > fuzzyMinSimilarity {
		return db.source(db.entries[bestIdx], ref, core.MatchFuzzy, fuzzyConfidence(bestSim)), true
	}
	return nil, false
}

func (db *ModelDB) source(e dbEntry, ref core.ModelReference, mt core.MatchType, conf int) *core.DownloadSource {
	dir := e.Directory
	if dir == "" {
		dir = ref.Category
	}
	return &core.DownloadSource{
		URL:             e.URL,
		Filename:        e.Filename,
		Directory:       dir,
		Size:            e.Size,
		Kind:            core.SourceCatalogDatabase,
		MatchType:       mt,
		FuzzyConfidence: conf,
	}
}

// Len reports the number of database entries.
func (db *ModelDB) Len() int { return len(db.entries) }

func fuzzyConfidence(sim float64) int {
	c := int(math.Round(sim * 100))
	if c > 99 {
		c = 99
	}
	return c
}
