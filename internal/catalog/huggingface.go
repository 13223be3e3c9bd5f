package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/pkg/core"
)

const defaultHuggingFaceEndpoint = "https://huggingface.co"

// HuggingFace searches the Hub for model files by name. Search results
// only name repositories, so each candidate repo's file tree is fetched
// to confirm the file actually exists before a source is returned.
type HuggingFace struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*core.DownloadSource
}

// NewHuggingFace builds a Hub client. endpoint overrides the public API
// base URL when non-empty; token is sent as a bearer credential when set.
func NewHuggingFace(endpoint, token string, logger *slog.Logger) *HuggingFace {
	if endpoint == "" {
		endpoint = defaultHuggingFaceEndpoint
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HuggingFace{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		cache:    make(map[string]*core.DownloadSource),
	}
}

type hfModel struct {
	ID string `json:"id"`
}

type hfTreeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Lookup searches the Hub for the referenced filename. The query is the
// filename with its extension and precision suffixes stripped, which is
// how repos tend to be named relative to the files they hold.
func (h *HuggingFace) Lookup(ctx context.Context, ref core.ModelReference) (*core.DownloadSource, bool) {
	base := matcher.Basename(ref.OriginalPath)

	h.mu.Lock()
	if src, ok := h.cache[base]; ok {
		h.mu.Unlock()
		return src, src != nil
	}
	h.mu.Unlock()

	src := h.search(ctx, base, ref.Category)

	h.mu.Lock()
	h.cache[base] = src
	h.mu.Unlock()
	return src, src != nil
}

func (h *HuggingFace) search(ctx context.Context, filename, category string) *core.DownloadSource {
	query := CleanModelName(filename)
	if query == "" {
		return nil
	}

	var models []hfModel
	u := fmt.Sprintf("%s/api/models?search=%s&limit=10", h.endpoint, url.QueryEscape(query))
	if err := h.getJSON(ctx, u, &models); err != nil {
		h.logger.Debug("huggingface search failed", "query", query, "error", err)
		return nil
	}

	want := matcher.NormalizePath(filename)
	for _, m := range models {
		entry, ok := h.findFile(ctx, m.ID, want)
		if !ok {
			continue
		}
		return &core.DownloadSource{
			URL:       fmt.Sprintf("%s/%s/resolve/main/%s", h.endpoint, m.ID, entry.Path),
			Filename:  matcher.Basename(entry.Path),
			Directory: category,
			Size:      entry.Size,
			Kind:      core.SourceHuggingFace,
			MatchType: core.MatchExact,
		}
	}
	return nil
}

// findFile confirms repo holds a file whose basename matches want.
func (h *HuggingFace) findFile(ctx context.Context, repo, want string) (hfTreeEntry, bool) {
	var tree []hfTreeEntry
	u := fmt.Sprintf("%s/api/models/%s/tree/main?recursive=true", h.endpoint, repo)
	if err := h.getJSON(ctx, u, &tree); err != nil {
		h.logger.Debug("huggingface tree fetch failed", "repo", repo, "error", err)
		return hfTreeEntry{}, false
	}
	for _, e := range tree {
		if e.Type != "file" {
			continue
		}
		if matcher.NormalizePath(matcher.Basename(e.Path)) == want {
			return e, true
		}
	}
	return hfTreeEntry{}, false
}

func (h *HuggingFace) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseHuggingFaceURL extracts filename and repo from resolve/blob style
// Hub URLs, or the hf://repo/path shorthand. Returns false for URLs that
// do not point at a concrete file.
func ParseHuggingFaceURL(raw string) (repo, filename string, ok bool) {
	if rest, found := strings.CutPrefix(raw, "hf://"); found {
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 || parts[2] == "" {
			return "", "", false
		}
		return parts[0] + "/" + parts[1], matcher.Basename(parts[2]), true
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "huggingface.co") {
		return "", "", false
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	// owner/repo/{resolve|blob}/revision/path...
	if len(segs) < 5 || (segs[2] != "resolve" && segs[2] != "blob") {
		return "", "", false
	}
	name, err := url.QueryUnescape(segs[len(segs)-1])
	if err != nil {
		name = segs[len(segs)-1]
	}
	return segs[0] + "/" + segs[1], name, true
}

// precisionSuffixes are trailing qualifiers that name a weight format or
// pruning variant rather than the model itself.
var precisionSuffixes = []string{
	"fp16", "fp8", "fp32", "bf16", "e4m3fn", "e5m2", "scaled",
	"pruned", "emaonly", "ema", "q4", "q5", "q8", "gguf",
}

// CleanModelName strips the extension and trailing precision qualifiers
// from a model filename, leaving a string suited to catalog search.
func CleanModelName(filename string) string {
	name := matcher.Basename(filename)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	for {
		trimmed := false
		lower := strings.ToLower(name)
		for _, suf := range precisionSuffixes {
			for _, sep := range []string{"-", "_", "."} {
				if strings.HasSuffix(lower, sep+suf) {
					name = name[:len(name)-len(suf)-1]
					trimmed = true
					break
				}
			}
			if trimmed {
				break
			}
		}
		if !trimmed {
			return strings.Trim(name, "-_. ")
		}
	}
}
