package workflow

import (
	"log/slog"

	"github.com/modelink/modelink/pkg/core"
)

// categoryHints maps known loader node types to the model category their
// path widget selects from. Used as hints only; unknown node types fall
// back to extension sniffing with category "unknown".
var categoryHints = map[string]string{
	"CheckpointLoaderSimple":   "checkpoints",
	"CheckpointLoader":         "checkpoints",
	"unCLIPCheckpointLoader":   "checkpoints",
	"VAELoader":                "vae",
	"LoraLoader":               "loras",
	"LoraLoaderModelOnly":      "loras",
	"UNETLoader":               "diffusion_models",
	"ControlNetLoader":         "controlnet",
	"ControlNetLoaderAdvanced": "controlnet",
	"CLIPVisionLoader":         "clip_vision",
	"UpscaleModelLoader":       "upscale_models",
	"HypernetworkLoader":       "hypernetworks",
	"EmbeddingLoader":          "embeddings",
}

// CategoryHint returns the category a node type selects models from, or
// "unknown".
func CategoryHint(nodeType string) string {
	if c, ok := categoryHints[nodeType]; ok {
		return c
	}
	return "unknown"
}

// Extract walks every top-level node and every subgraph definition and
// returns the model-path references found. A graph that cannot be
// traversed yields an empty set with a diagnostic log line; extraction is
// read-only and never fails the caller.
func Extract(g Graph, logger *slog.Logger) []core.ModelReference {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var refs []core.ModelReference

	nodes := g.nodes()
	if nodes == nil {
		logger.Warn("workflow has no traversable node list")
	}
	for _, n := range nodes {
		node, ok := n.(map[string]any)
		if !ok {
			logger.Debug("skipping non-object node entry")
			continue
		}
		refs = append(refs, nodeReferences(node, "", true, logger)...)
	}

	for _, s := range g.subgraphs() {
		sg, ok := s.(map[string]any)
		if !ok {
			continue
		}
		sgID, _ := sg["id"].(string)
		if sgID == "" {
			logger.Debug("skipping subgraph definition without id")
			continue
		}
		sgNodes, _ := sg["nodes"].([]any)
		for _, n := range sgNodes {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			refs = append(refs, nodeReferences(node, sgID, false, logger)...)
		}
	}

	return refs
}

// nodeReferences scans one node's widgets_values for model filenames.
func nodeReferences(node map[string]any, subgraphID string, topLevel bool, logger *slog.Logger) []core.ModelReference {
	id, ok := nodeID(node)
	if !ok {
		logger.Debug("skipping node without usable id")
		return nil
	}
	nodeType, _ := node["type"].(string)
	widgets, _ := node["widgets_values"].([]any)
	if len(widgets) == 0 {
		return nil
	}

	category := CategoryHint(nodeType)

	var refs []core.ModelReference
	for idx, w := range widgets {
		value, ok := w.(string)
		if !ok || !core.IsModelFilename(value) {
			continue
		}
		refs = append(refs, core.ModelReference{
			NodeID:       id,
			NodeType:     nodeType,
			WidgetIndex:  idx,
			Category:     category,
			OriginalPath: value,
			SubgraphID:   subgraphID,
			IsTopLevel:   topLevel,
		})
	}
	return refs
}
