package core

import (
	"path/filepath"
	"strings"
)

// ModelExtensions is the set of file extensions treated as model files,
// matching what common host editors ship with.
var ModelExtensions = map[string]struct{}{
	".ckpt":        {},
	".pt":          {},
	".pt2":         {},
	".bin":         {},
	".pth":         {},
	".safetensors": {},
	".pkl":         {},
	".sft":         {},
	".onnx":        {},
}

// IsModelFilename reports whether a widget value looks like a model file
// reference, judged by extension alone.
func IsModelFilename(v string) bool {
	ext := strings.ToLower(filepath.Ext(v))
	_, ok := ModelExtensions[ext]
	return ok
}
