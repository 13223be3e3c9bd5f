package core

// SourceKind identifies where a download source was discovered.
type SourceKind string

const (
	// SourceWorkflowEmbedded means the URL was embedded in the workflow
	// itself, either in node properties or as a raw URL in the JSON.
	SourceWorkflowEmbedded SourceKind = "workflow-embedded"
	// SourceCuratedPopular means the curated popular-models catalog.
	SourceCuratedPopular SourceKind = "curated-popular"
	// SourceCatalogDatabase means the bundled model database.
	SourceCatalogDatabase SourceKind = "catalog-database"
	// SourceHuggingFace means a live HuggingFace Hub lookup.
	SourceHuggingFace SourceKind = "huggingface"
	// SourceCivitai means a live Civitai lookup.
	SourceCivitai SourceKind = "civitai"
)

// MatchType describes how a download source was matched to a filename.
type MatchType string

const (
	// MatchExact means the source names the file exactly.
	MatchExact MatchType = "exact"
	// MatchFuzzy means the source was found by similarity.
	MatchFuzzy MatchType = "fuzzy"
)

// DownloadSource is a proposed remote origin for a missing file.
type DownloadSource struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	// Directory is the target local category folder (checkpoints, ...).
	Directory string `json:"directory"`
	// Size is the byte count when the source declares one, else 0.
	Size      int64      `json:"size,omitempty"`
	Kind      SourceKind `json:"sourceKind"`
	MatchType MatchType  `json:"matchType"`
	// FuzzyConfidence is set only when MatchType is MatchFuzzy.
	FuzzyConfidence int `json:"fuzzyConfidence,omitempty"`
}
