package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelink/modelink/pkg/core"
)

func ref(category, path string) core.ModelReference {
	return core.ModelReference{Category: category, OriginalPath: path}
}

func TestPopular_ExactLookup(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)

	src, ok := p.Lookup(ref("checkpoints", "v1-5-pruned-emaonly.safetensors"))
	require.True(t, ok)
	assert.Equal(t, core.SourceCuratedPopular, src.Kind)
	assert.Equal(t, core.MatchExact, src.MatchType)
	assert.Equal(t, "checkpoints", src.Directory)
	assert.Contains(t, src.URL, "huggingface.co")
}

func TestPopular_IgnoresDirectoryPrefixAndCase(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)

	src, ok := p.Lookup(ref("checkpoints", `SD15\V1-5-Pruned-Emaonly.safetensors`))
	require.True(t, ok)
	assert.Equal(t, "v1-5-pruned-emaonly.safetensors", src.Filename)
}

func TestPopular_AliasResolvesToCanonical(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)

	src, ok := p.Lookup(ref("upscale_models", "4x_UltraSharp.pth"))
	require.True(t, ok)
	assert.Equal(t, "4x-UltraSharp.pth", src.Filename)
}

func TestPopular_Miss(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)

	_, ok := p.Lookup(ref("checkpoints", "my-private-finetune.safetensors"))
	assert.False(t, ok)
}

func TestModelDB_ExactBeatsFuzzy(t *testing.T) {
	db, err := LoadModelDB("")
	require.NoError(t, err)

	src, ok := db.Lookup(ref("vae", "sdxl_vae.safetensors"))
	require.True(t, ok)
	assert.Equal(t, core.MatchExact, src.MatchType)
	assert.Equal(t, core.SourceCatalogDatabase, src.Kind)
	assert.Zero(t, src.FuzzyConfidence)
}

func TestModelDB_SubstringFuzzy(t *testing.T) {
	db, err := LoadModelDB("")
	require.NoError(t, err)

	// Contained in "sd_xl_turbo_1.0_fp16.safetensors" after normalization.
	src, ok := db.Lookup(ref("checkpoints", "sd_xl_turbo_1.0.safetensors"))
	require.True(t, ok)
	assert.Equal(t, "sd_xl_turbo_1.0_fp16.safetensors", src.Filename)
	assert.Equal(t, core.MatchFuzzy, src.MatchType)
	assert.Greater(t, src.FuzzyConfidence, 50)
}

func TestModelDB_Miss(t *testing.T) {
	db, err := LoadModelDB("")
	require.NoError(t, err)

	_, ok := db.Lookup(ref("checkpoints", "zzz-completely-unrelated.bin"))
	assert.False(t, ok)
}

func TestCleanModelName(t *testing.T) {
	cases := map[string]string{
		"t5xxl_fp16.safetensors":          "t5xxl",
		"t5xxl_fp8_e4m3fn.safetensors":    "t5xxl",
		"v1-5-pruned-emaonly.safetensors": "v1-5",
		"flux1-dev.safetensors":           "flux1-dev",
		"model.q4.gguf":                   "model",
		"checkpoints/anything-v5.ckpt":    "anything-v5",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanModelName(in), "input %q", in)
	}
}

func TestParseHuggingFaceURL(t *testing.T) {
	repo, name, ok := ParseHuggingFaceURL("https://huggingface.co/stabilityai/sdxl-vae/resolve/main/sdxl_vae.safetensors")
	require.True(t, ok)
	assert.Equal(t, "stabilityai/sdxl-vae", repo)
	assert.Equal(t, "sdxl_vae.safetensors", name)

	repo, name, ok = ParseHuggingFaceURL("hf://black-forest-labs/FLUX.1-dev/ae.safetensors")
	require.True(t, ok)
	assert.Equal(t, "black-forest-labs/FLUX.1-dev", repo)
	assert.Equal(t, "ae.safetensors", name)

	_, _, ok = ParseHuggingFaceURL("https://huggingface.co/stabilityai/sdxl-vae")
	assert.False(t, ok)
	_, _, ok = ParseHuggingFaceURL("https://example.com/whatever")
	assert.False(t, ok)
}

func TestHuggingFace_LookupVerifiesTree(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/models":
			json.NewEncoder(w).Encode([]hfModel{
				{ID: "someone/empty-repo"},
				{ID: "stabilityai/sdxl-vae"},
			})
		case "/api/models/someone/empty-repo/tree/main":
			json.NewEncoder(w).Encode([]hfTreeEntry{})
		case "/api/models/stabilityai/sdxl-vae/tree/main":
			json.NewEncoder(w).Encode([]hfTreeEntry{
				{Type: "file", Path: "sdxl_vae.safetensors", Size: 334641164},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	hf := NewHuggingFace(srv.URL, "tok", nil)
	src, ok := hf.Lookup(context.Background(), ref("vae", "sdxl_vae.safetensors"))
	require.True(t, ok)
	assert.Equal(t, "Bearer tok", sawAuth)
	assert.Equal(t, core.SourceHuggingFace, src.Kind)
	assert.Equal(t, srv.URL+"/stabilityai/sdxl-vae/resolve/main/sdxl_vae.safetensors", src.URL)
	assert.Equal(t, int64(334641164), src.Size)
	assert.Equal(t, "vae", src.Directory)
}

func TestHuggingFace_CachesNegativeResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]hfModel{})
	}))
	defer srv.Close()

	hf := NewHuggingFace(srv.URL, "", nil)
	_, ok := hf.Lookup(context.Background(), ref("vae", "nothing.safetensors"))
	assert.False(t, ok)
	_, ok = hf.Lookup(context.Background(), ref("vae", "nothing.safetensors"))
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestCivitai_LookupExactFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/models", r.URL.Path)
		assert.Equal(t, "Checkpoint", r.URL.Query().Get("types"))
		json.NewEncoder(w).Encode(civitaiSearch{Items: []civitaiModel{{
			ID:   42,
			Name: "Dreamshaper",
			ModelVersions: []civitaiVersion{{
				ID: 7,
				Files: []civitaiFile{
					{Name: "other.safetensors", DownloadURL: "https://dl/other"},
					{Name: "dreamshaper_8.safetensors", SizeKB: 2048, DownloadURL: "https://dl/ds8"},
				},
			}},
		}}})
	}))
	defer srv.Close()

	c := NewCivitai(srv.URL, "", nil)
	src, ok := c.Lookup(context.Background(), ref("checkpoints", "dreamshaper_8.safetensors"))
	require.True(t, ok)
	assert.Equal(t, core.SourceCivitai, src.Kind)
	assert.Equal(t, "https://dl/ds8", src.URL)
	assert.Equal(t, int64(2048*1024), src.Size)
}

func TestResolver_EmbeddedWinsOverEverything(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)
	r := NewResolver(p, nil, nil, nil, time.Second, nil)

	embedded := &core.DownloadSource{
		URL:       "https://example.com/x.safetensors",
		Filename:  "v1-5-pruned-emaonly.safetensors",
		Directory: "checkpoints",
		Kind:      core.SourceWorkflowEmbedded,
		MatchType: core.MatchExact,
	}
	src := r.Resolve(context.Background(), ref("checkpoints", "v1-5-pruned-emaonly.safetensors"), embedded)
	require.NotNil(t, src)
	assert.Equal(t, core.SourceWorkflowEmbedded, src.Kind)
}

func TestResolver_PopularBeatsDatabase(t *testing.T) {
	p, err := LoadPopular("")
	require.NoError(t, err)
	db, err := LoadModelDB("")
	require.NoError(t, err)
	r := NewResolver(p, db, nil, nil, time.Second, nil)

	src := r.Resolve(context.Background(), ref("vae", "sdxl_vae.safetensors"), nil)
	require.NotNil(t, src)
	assert.Equal(t, core.SourceCuratedPopular, src.Kind)
}

func TestResolver_UnreachableLiveCatalogDegradesToAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	hf := NewHuggingFace(srv.URL, "", nil)
	c := NewCivitai(srv.URL, "", nil)
	r := NewResolver(nil, nil, hf, c, time.Second, nil)

	src := r.Resolve(context.Background(), ref("checkpoints", "obscure-model.safetensors"), nil)
	assert.Nil(t, src)
}

func TestResolver_SearchReportsPerCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models":
			json.NewEncoder(w).Encode([]hfModel{{ID: "stabilityai/sdxl-vae"}})
		case "/api/v1/models":
			json.NewEncoder(w).Encode(civitaiSearch{Items: []civitaiModel{{ID: 9, Name: "SDXL VAE mirror"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := LoadPopular("")
	require.NoError(t, err)
	db, err := LoadModelDB("")
	require.NoError(t, err)
	r := NewResolver(p, db, NewHuggingFace(srv.URL, "", nil), NewCivitai(srv.URL, "", nil), time.Second, nil)

	res := r.Search(context.Background(), "sdxl_vae.safetensors", "vae")
	require.NotNil(t, res.Popular)
	require.NotNil(t, res.ModelList)
	require.Len(t, res.HuggingFace, 1)
	assert.Equal(t, "stabilityai/sdxl-vae", res.HuggingFace[0].Name)
	require.Len(t, res.Civitai, 1)
	assert.Contains(t, res.Civitai[0].URL, "/models/9")
}
