package workflow

import (
	"fmt"

	"github.com/modelink/modelink/pkg/core"
)

// PatchError identifies the patch target that no longer exists in the
// supplied graph. The whole batch is rejected when any target is missing.
type PatchError struct {
	Patch  core.Patch
	Reason string
}

func (e *PatchError) Error() string {
	where := "top-level"
	if e.Patch.SubgraphID != "" {
		where = "subgraph " + e.Patch.SubgraphID
	}
	return fmt.Sprintf("cannot patch node %d widget %d (%s): %s",
		e.Patch.NodeID, e.Patch.WidgetIndex, where, e.Reason)
}

// Apply mutates a copy of the graph with every patch and returns the
// copy. All patches succeed or the call fails as a whole: on error the
// returned graph is the unmodified input and no partial mutation is
// observable.
func Apply(g Graph, patches []core.Patch) (Graph, error) {
	// Validate every target against the original before copying anything,
	// so a stale patch never leaves partial effects.
	for _, p := range patches {
		if err := validateTarget(g, p); err != nil {
			return g, err
		}
	}

	patched, _ := deepCopy(map[string]any(g)).(map[string]any)
	out := Graph(patched)
	for _, p := range patches {
		node, _ := findNode(out, p)
		widgets := node["widgets_values"].([]any)
		widgets[p.WidgetIndex] = p.NewPath
	}
	return out, nil
}

// validateTarget checks a patch against the graph without mutating it.
func validateTarget(g Graph, p core.Patch) error {
	node, err := findNode(g, p)
	if err != nil {
		return err
	}
	widgets, _ := node["widgets_values"].([]any)
	if p.WidgetIndex < 0 || p.WidgetIndex >= len(widgets) {
		return &PatchError{Patch: p, Reason: fmt.Sprintf("widget index out of range (node has %d widgets)", len(widgets))}
	}
	return nil
}

// findNode locates the patch target node, searching the top-level node
// list or the named subgraph definition.
func findNode(g Graph, p core.Patch) (map[string]any, error) {
	var list []any
	if p.SubgraphID == "" {
		list = g.nodes()
	} else {
		for _, s := range g.subgraphs() {
			sg, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if id, _ := sg["id"].(string); id == p.SubgraphID {
				list, _ = sg["nodes"].([]any)
				break
			}
		}
		if list == nil {
			return nil, &PatchError{Patch: p, Reason: "subgraph not found"}
		}
	}

	for _, n := range list {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := nodeID(node); ok && id == p.NodeID {
			return node, nil
		}
	}
	return nil, &PatchError{Patch: p, Reason: "node not found"}
}
