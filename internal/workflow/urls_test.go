package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelink/modelink/pkg/core"
)

func TestExtractEmbeddedSources_NodeProperties(t *testing.T) {
	raw := `{
	  "nodes": [{
	    "id": 1,
	    "type": "CheckpointLoaderSimple",
	    "widgets_values": ["model.safetensors"],
	    "properties": {
	      "models": [{
	        "name": "model.safetensors",
	        "url": "https://huggingface.co/org/repo/resolve/main/model.safetensors",
	        "directory": "checkpoints"
	      }]
	    }
	  }]
	}`
	g, err := Parse([]byte(raw))
	require.NoError(t, err)

	sources := ExtractEmbeddedSources(g)
	require.Contains(t, sources, "model.safetensors")
	s := sources["model.safetensors"]
	assert.Equal(t, "https://huggingface.co/org/repo/resolve/main/model.safetensors", s.URL)
	assert.Equal(t, "checkpoints", s.Directory)
}

func TestExtractEmbeddedSources_RawURLFallback(t *testing.T) {
	// No properties.models entry; URL only appears as a loose string in
	// the document (e.g. a note node).
	raw := `{
	  "nodes": [
	    {"id": 1, "type": "VAELoader", "widgets_values": ["vae-ft-mse.safetensors"]},
	    {"id": 2, "type": "Note", "widgets_values": ["get it at https://huggingface.co/org/vae/resolve/main/vae-ft-mse.safetensors"], "properties": {}}
	  ]
	}`
	g, err := Parse([]byte(raw))
	require.NoError(t, err)

	sources := ExtractEmbeddedSources(g)
	require.Contains(t, sources, "vae-ft-mse.safetensors")
	assert.Contains(t, sources["vae-ft-mse.safetensors"].URL, "huggingface.co/org/vae")
}

func TestEmbeddedSourceFor(t *testing.T) {
	sources := map[string]EmbeddedSource{
		"model.safetensors": {URL: "https://civitai.com/api/download/models/12345", Directory: ""},
	}

	src := EmbeddedSourceFor(sources, `checkpoints\model.safetensors`, "checkpoints")
	require.NotNil(t, src)
	assert.Equal(t, core.SourceWorkflowEmbedded, src.Kind)
	assert.Equal(t, core.MatchExact, src.MatchType)
	assert.Equal(t, "checkpoints", src.Directory, "empty embedded directory falls back to the reference category")

	assert.Nil(t, EmbeddedSourceFor(sources, "other.safetensors", "loras"))
}
