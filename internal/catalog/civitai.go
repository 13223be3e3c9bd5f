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

const defaultCivitaiEndpoint = "https://civitai.com"

// civitaiTypes maps local category folders to the model type filter the
// Civitai API expects.
var civitaiTypes = map[string]string{
	"checkpoints":      "Checkpoint",
	"loras":            "LORA",
	"vae":              "VAE",
	"controlnet":       "Controlnet",
	"upscale_models":   "Upscaler",
	"embeddings":       "TextualInversion",
	"hypernetworks":    "Hypernetwork",
	"diffusion_models": "Checkpoint",
}

// Civitai searches civitai.com for model files by name. Results carry
// per-version file listings, so a hit is only reported when a version
// file matches the wanted filename exactly.
type Civitai struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*core.DownloadSource
}

// NewCivitai builds a Civitai client. endpoint overrides the public API
// base URL when non-empty; token is sent as a bearer credential when set.
func NewCivitai(endpoint, token string, logger *slog.Logger) *Civitai {
	if endpoint == "" {
		endpoint = defaultCivitaiEndpoint
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Civitai{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		cache:    make(map[string]*core.DownloadSource),
	}
}

type civitaiSearch struct {
	Items []civitaiModel `json:"items"`
}

type civitaiModel struct {
	ID            int              `json:"id"`
	Name          string           `json:"name"`
	ModelVersions []civitaiVersion `json:"modelVersions"`
}

type civitaiVersion struct {
	ID    int           `json:"id"`
	Files []civitaiFile `json:"files"`
}

type civitaiFile struct {
	Name        string  `json:"name"`
	SizeKB      float64 `json:"sizeKB"`
	DownloadURL string  `json:"downloadUrl"`
}

// Lookup searches Civitai for the referenced filename.
func (c *Civitai) Lookup(ctx context.Context, ref core.ModelReference) (*core.DownloadSource, bool) {
	base := matcher.Basename(ref.OriginalPath)
	key := ref.Category + "|" + base

	c.mu.Lock()
	if src, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return src, src != nil
	}
	c.mu.Unlock()

	src := c.search(ctx, base, ref.Category)

	c.mu.Lock()
	c.cache[key] = src
	c.mu.Unlock()
	return src, src != nil
}

func (c *Civitai) search(ctx context.Context, filename, category string) *core.DownloadSource {
	query := CleanModelName(filename)
	if query == "" {
		return nil
	}

	u := fmt.Sprintf("%s/api/v1/models?query=%s&limit=10", c.endpoint, url.QueryEscape(query))
	if t, ok := civitaiTypes[category]; ok {
		u += "&types=" + url.QueryEscape(t)
	}

	var result civitaiSearch
	if err := c.getJSON(ctx, u, &result); err != nil {
		c.logger.Debug("civitai search failed", "query", query, "error", err)
		return nil
	}

	want := matcher.NormalizePath(filename)
	for _, m := range result.Items {
		for _, v := range m.ModelVersions {
			for _, f := range v.Files {
				if matcher.NormalizePath(f.Name) != want || f.DownloadURL == "" {
					continue
				}
				return &core.DownloadSource{
					URL:       f.DownloadURL,
					Filename:  f.Name,
					Directory: category,
					Size:      int64(f.SizeKB * 1024),
					Kind:      core.SourceCivitai,
					MatchType: core.MatchExact,
				}
			}
		}
	}
	return nil
}

func (c *Civitai) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseCivitaiURL recognizes civitai.com model page URLs and returns the
// model ID segment. Download URLs pass through untouched elsewhere, so
// only the /models/{id} page form is handled here.
func ParseCivitaiURL(raw string) (modelID string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "civitai.com") {
		return "", false
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) < 2 || segs[0] != "models" {
		return "", false
	}
	return segs[1], true
}
