// Package workflow reads and patches serialized workflow graphs.
//
// Graphs arrive as arbitrary caller JSON with a loosely specified shape:
// a top-level "nodes" array, and optionally "definitions.subgraphs" holding
// reusable subgraph definitions with their own node arrays. The package
// treats the graph as a dynamic structure and degrades unknown shapes to
// "no reference extracted" rather than failing.
package workflow

import (
	"encoding/json"
	"fmt"
)

// Graph is a decoded workflow document. It is the unit of traversal for
// extraction and the unit of copy-then-mutate for patching.
type Graph map[string]any

// Parse decodes workflow JSON. A document whose top level is not an object
// is an input error; everything below that degrades gracefully during
// traversal.
func Parse(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("malformed workflow JSON: %w", err)
	}
	return g, nil
}

// Marshal serializes the graph back to JSON.
func (g Graph) Marshal() ([]byte, error) {
	data, err := json.Marshal(map[string]any(g))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow: %w", err)
	}
	return data, nil
}

// nodes returns the node list at the top level, or nil when the shape is
// not an array.
func (g Graph) nodes() []any {
	n, _ := g["nodes"].([]any)
	return n
}

// subgraphs returns the subgraph definition list, or nil.
func (g Graph) subgraphs() []any {
	defs, _ := g["definitions"].(map[string]any)
	if defs == nil {
		return nil
	}
	sg, _ := defs["subgraphs"].([]any)
	return sg
}

// nodeID extracts the numeric id of a node object. JSON numbers decode to
// float64; string ids that parse as integers are accepted too.
func nodeID(node map[string]any) (int, bool) {
	switch v := node["id"].(type) {
	case float64:
		return int(v), true
	case string:
		var id int
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id, true
		}
	}
	return 0, false
}

// deepCopy clones a decoded JSON value so patches never mutate the
// caller's graph.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
