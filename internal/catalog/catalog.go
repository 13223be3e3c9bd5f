// Package catalog resolves missing model files to remote download
// sources. Sources are consulted in a fixed priority order: URLs
// embedded in the workflow beat the curated popular list, which beats
// the bundled model database, which beats live HuggingFace and Civitai
// lookups. Live catalogs run under a bounded timeout and degrade to
// absent on any failure.
package catalog

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/pkg/core"
)

const defaultLookupTimeout = 20 * time.Second

// Resolver runs the source priority chain for a model reference.
type Resolver struct {
	popular *Popular
	db      *ModelDB
	hf      *HuggingFace
	civitai *Civitai
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver wires a resolver from its catalogs. Any catalog may be
// nil, in which case its tier is skipped. timeout bounds each live
// lookup; zero selects the default.
func NewResolver(popular *Popular, db *ModelDB, hf *HuggingFace, civitai *Civitai, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		popular: popular,
		db:      db,
		hf:      hf,
		civitai: civitai,
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve finds the best download source for ref. embedded, when
// non-nil, is a source extracted from the workflow itself and wins over
// every catalog. Returns nil when no source is known.
func (r *Resolver) Resolve(ctx context.Context, ref core.ModelReference, embedded *core.DownloadSource) *core.DownloadSource {
	if embedded != nil {
		return embedded
	}
	if r.popular != nil {
		if src, ok := r.popular.Lookup(ref); ok {
			return src
		}
	}
	if r.db != nil {
		if src, ok := r.db.Lookup(ref); ok {
			return src
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.hf != nil {
		if src, ok := r.hf.Lookup(ctx, ref); ok {
			return src
		}
	}
	if r.civitai != nil {
		if src, ok := r.civitai.Lookup(ctx, ref); ok {
			return src
		}
	}
	r.logger.Debug("no download source found", "path", ref.OriginalPath, "category", ref.Category)
	return nil
}

// RemoteHit is a lightweight search result from a live catalog.
type RemoteHit struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SearchResult collects per-catalog results for an on-demand search.
type SearchResult struct {
	Popular     *core.DownloadSource `json:"popular,omitempty"`
	ModelList   *core.DownloadSource `json:"modelList,omitempty"`
	HuggingFace []RemoteHit          `json:"huggingface,omitempty"`
	Civitai     []RemoteHit          `json:"civitai,omitempty"`
}

// Search queries every catalog for filename and reports what each one
// knows. Unlike Resolve it does not stop at the first hit.
func (r *Resolver) Search(ctx context.Context, filename, category string) SearchResult {
	ref := core.ModelReference{OriginalPath: filename, Category: category}
	var out SearchResult

	if r.popular != nil {
		if src, ok := r.popular.Lookup(ref); ok {
			out.Popular = src
		} else if src, ok := r.popular.searchSubstring(filename, category); ok {
			out.Popular = src
		}
	}
	if r.db != nil {
		if src, ok := r.db.Lookup(ref); ok {
			out.ModelList = src
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.hf != nil {
		out.HuggingFace = r.hf.SearchRepos(ctx, filename)
	}
	if r.civitai != nil {
		out.Civitai = r.civitai.SearchModels(ctx, filename, category)
	}
	return out
}

// searchSubstring finds a curated entry whose key contains the query,
// for searches where the exact filename is not known.
func (p *Popular) searchSubstring(filename, category string) (*core.DownloadSource, bool) {
	query := matcher.NormalizePath(matcher.Basename(filename))
	if query == "" {
		return nil, false
	}
	for key, hit := range p.byBase {
		if !strings.Contains(key, query) {
			continue
		}
		dir := hit.entry.Directory
		if dir == "" {
			dir = category
		}
		return &core.DownloadSource{
			URL:       hit.entry.URL,
			Filename:  hit.filename,
			Directory: dir,
			Size:      hit.entry.Size,
			Kind:      core.SourceCuratedPopular,
			MatchType: core.MatchFuzzy,
			FuzzyConfidence: fuzzyConfidence(
				matcher.Similarity(filename, hit.filename)),
		}, true
	}
	return nil, false
}

// SearchRepos lists Hub repositories matching the cleaned filename.
func (h *HuggingFace) SearchRepos(ctx context.Context, filename string) []RemoteHit {
	query := CleanModelName(filename)
	if query == "" {
		return nil
	}
	var models []hfModel
	u := h.endpoint + "/api/models?search=" + url.QueryEscape(query) + "&limit=10"
	if err := h.getJSON(ctx, u, &models); err != nil {
		h.logger.Debug("huggingface search failed", "query", query, "error", err)
		return nil
	}
	hits := make([]RemoteHit, 0, len(models))
	for _, m := range models {
		hits = append(hits, RemoteHit{Name: m.ID, URL: h.endpoint + "/" + m.ID})
	}
	return hits
}

// SearchModels lists Civitai models matching the cleaned filename.
func (c *Civitai) SearchModels(ctx context.Context, filename, category string) []RemoteHit {
	query := CleanModelName(filename)
	if query == "" {
		return nil
	}
	u := c.endpoint + "/api/v1/models?query=" + url.QueryEscape(query) + "&limit=10"
	if t, ok := civitaiTypes[category]; ok {
		u += "&types=" + url.QueryEscape(t)
	}
	var result civitaiSearch
	if err := c.getJSON(ctx, u, &result); err != nil {
		c.logger.Debug("civitai search failed", "query", query, "error", err)
		return nil
	}
	hits := make([]RemoteHit, 0, len(result.Items))
	for _, m := range result.Items {
		hits = append(hits, RemoteHit{
			Name: m.Name,
			URL:  "https://civitai.com/models/" + strconv.Itoa(m.ID),
		})
	}
	return hits
}
