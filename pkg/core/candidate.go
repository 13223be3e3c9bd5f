package core

// Confidence thresholds used across the engine.
const (
	// ConfidenceFloor is the minimum confidence for a candidate to be
	// reported at all.
	ConfidenceFloor = 70
	// ConfidenceExact marks a certain match, eligible for auto-resolve.
	ConfidenceExact = 100
)

// MatchCandidate is a local file proposed as a replacement for a missing
// reference, scored 0-100.
type MatchCandidate struct {
	// Confidence is an integer 0-100. 100 means the file is the same
	// model under renaming or relocation.
	Confidence int `json:"confidence"`
	// File is the proposed local file.
	File ModelFile `json:"file"`
}
