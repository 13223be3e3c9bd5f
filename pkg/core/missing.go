package core

// MissingModel is the unit the resolution planner emits: one logical
// missing file with its best local candidates, its best download source,
// and every graph reference that resolves to it.
type MissingModel struct {
	// OriginalPath is the authored path of the first reference seen.
	OriginalPath string `json:"originalPath"`
	// Category is the semantic bucket for the missing file.
	Category string `json:"category"`
	// Candidates is ordered by the matcher's total order: confidence-100
	// entries first, then descending confidence, stable otherwise. When
	// any candidate reaches 100, sub-100 candidates are removed from the
	// slice and counted in SuppressedCandidates instead.
	Candidates []MatchCandidate `json:"candidates"`
	// SuppressedCandidates counts 70-99 candidates hidden because a
	// confidence-100 candidate exists. Preserved for display purposes.
	SuppressedCandidates int `json:"suppressedCandidates,omitempty"`
	// DownloadSource is the highest-priority fetchable origin found, if
	// any. Lower-priority sources are not retained.
	DownloadSource *DownloadSource `json:"downloadSource,omitempty"`
	// References is every reference in the graph sharing this logical
	// file, deduplicated by normalized path. Never empty.
	References []ModelReference `json:"allReferences"`
}

// BestConfidence returns the confidence of the first candidate, or 0
// when there are no candidates.
func (m *MissingModel) BestConfidence() int {
	if len(m.Candidates) == 0 {
		return 0
	}
	return m.Candidates[0].Confidence
}

// HasExactCandidate reports whether any candidate scored 100.
func (m *MissingModel) HasExactCandidate() bool {
	return m.BestConfidence() == ConfidenceExact
}
