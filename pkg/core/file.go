package core

// ModelFile describes one model file known to the local store.
type ModelFile struct {
	// Filename is the base name (e.g. "model_v1.safetensors").
	Filename string `json:"filename"`
	// RelativePath is the path relative to the category base directory,
	// using OS-native separators.
	RelativePath string `json:"relativePath"`
	// AbsolutePath is the resolved absolute path on disk.
	AbsolutePath string `json:"absolutePath"`
	// Category is the store category the file was found under.
	Category string `json:"category"`
	// BaseDir is the base directory the relative path is anchored at.
	BaseDir string `json:"baseDir"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// Store is the read interface the engine needs from the local model-file
// store. Implementations must be safe for concurrent readers.
type Store interface {
	// Lookup resolves a workflow path to a local file. The category is a
	// hint: the matching file may live under a different category. The
	// comparison is case-insensitive and separator-insensitive.
	Lookup(category, path string) (ModelFile, bool)

	// Models returns every indexed file. Category-matching files sort
	// before the rest when a non-empty category is given, preserving scan
	// order within each group.
	Models(category string) []ModelFile
}
