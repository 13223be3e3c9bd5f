package core

import "fmt"

// ModelReference is one occurrence of a model file path inside a workflow
// graph. A reference either lives on a top-level node instance or inside a
// subgraph definition; the latter is shared by every instance of that
// subgraph, so resolving it once affects all instances.
type ModelReference struct {
	// NodeID is the numeric node id within its graph or subgraph.
	NodeID int `json:"nodeId"`
	// NodeType is the node's declared type (e.g. "CheckpointLoaderSimple").
	NodeType string `json:"nodeType,omitempty"`
	// WidgetIndex is the position of the path value in the node's
	// widgets_values list.
	WidgetIndex int `json:"widgetIndex"`
	// Category is the semantic bucket the path belongs to
	// (checkpoints, loras, vae, ...). "unknown" when no hint applied.
	Category string `json:"category"`
	// OriginalPath is the path exactly as authored in the workflow,
	// possibly containing directory segments in either separator style.
	OriginalPath string `json:"originalPath"`
	// SubgraphID is set when the reference lives inside a subgraph
	// definition rather than a top-level node.
	SubgraphID string `json:"subgraphId,omitempty"`
	// IsTopLevel distinguishes top-level node references from
	// subgraph-definition references.
	IsTopLevel bool `json:"isTopLevel"`
}

// Key uniquely identifies one reference within one graph snapshot.
func (r ModelReference) Key() string {
	return fmt.Sprintf("%d/%d/%s", r.NodeID, r.WidgetIndex, r.SubgraphID)
}

// Patch is one pending mutation of a workflow graph: replace the widget
// value at (NodeID, WidgetIndex, SubgraphID) with NewPath.
type Patch struct {
	NodeID      int    `json:"nodeId"`
	WidgetIndex int    `json:"widgetIndex"`
	SubgraphID  string `json:"subgraphId,omitempty"`
	NewPath     string `json:"newPath"`
}
