package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/pkg/core"
)

//go:embed data/popular-models.yaml
var popularEmbedded []byte

type popularEntry struct {
	URL       string `yaml:"url"`
	Directory string `yaml:"directory"`
	Size      int64  `yaml:"size"`
}

type popularFile struct {
	Models  map[string]popularEntry `yaml:"models"`
	Aliases map[string][]string     `yaml:"aliases"`
}

// Popular is the curated list of well known models with verified
// download URLs. Lookups go through normalized basenames so entries
// match regardless of directory prefixes or name casing.
type Popular struct {
	byBase map[string]popularHit
}

type popularHit struct {
	filename string
	entry    popularEntry
}

// LoadPopular reads a curated catalog from path, or the embedded copy
// when path is empty.
func LoadPopular(path string) (*Popular, error) {
	raw := popularEmbedded
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading popular catalog: %w", err)
		}
		raw = b
	}

	var pf popularFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parsing popular catalog: %w", err)
	}

	p := &Popular{byBase: make(map[string]popularHit, len(pf.Models))}
	for name, entry := range pf.Models {
		p.byBase[matcher.NormalizePath(name)] = popularHit{filename: name, entry: entry}
	}
	for canonical, aliases := range pf.Aliases {
		hit, ok := p.byBase[matcher.NormalizePath(canonical)]
		if !ok {
			return nil, fmt.Errorf("popular catalog: alias target %q has no entry", canonical)
		}
		for _, alias := range aliases {
			key := matcher.NormalizePath(alias)
			if _, exists := p.byBase[key]; !exists {
				p.byBase[key] = hit
			}
		}
	}
	return p, nil
}

// Lookup returns a download source for the referenced model when its
// basename, or a known alias of it, appears in the curated list.
func (p *Popular) Lookup(ref core.ModelReference) (*core.DownloadSource, bool) {
	hit, ok := p.byBase[matcher.NormalizePath(matcher.Basename(ref.OriginalPath))]
	if !ok {
		return nil, false
	}
	dir := hit.entry.Directory
	if dir == "" {
		dir = ref.Category
	}
	return &core.DownloadSource{
		URL:       hit.entry.URL,
		Filename:  hit.filename,
		Directory: dir,
		Size:      hit.entry.Size,
		Kind:      core.SourceCuratedPopular,
		MatchType: core.MatchExact,
	}, true
}

// Len reports the number of distinct lookup keys, aliases included.
func (p *Popular) Len() int { return len(p.byBase) }
