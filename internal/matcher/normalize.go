package matcher

import (
	"path"
	"strings"
)

// NormalizePath canonicalizes a workflow model path for comparison:
// backslashes become forward slashes, case is folded, and leading "./"
// segments are dropped. Workflows authored on Windows and Unix must
// normalize to the same key.
func NormalizePath(p string) string {
	s := strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	s = strings.TrimPrefix(s, "./")
	return strings.ToLower(path.Clean(s))
}

// Basename returns the normalized final path element.
func Basename(p string) string {
	return path.Base(NormalizePath(p))
}

// stripExt removes the file extension, if any.
func stripExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// NormalizeName prepares a basename for fuzzy comparison: extension
// stripped, separators mapped to spaces, case folded. The catalog
// database uses the same form so local and remote fuzzy matching agree.
func NormalizeName(name string) string {
	return normalizeBase(name)
}

// normalizeBase prepares a basename for similarity comparison: extension
// stripped, separators mapped to spaces, case folded.
func normalizeBase(name string) string {
	base := strings.ToLower(stripExt(name))
	repl := strings.NewReplacer("-", " ", "_", " ", ".", " ")
	return strings.Join(strings.Fields(repl.Replace(base)), " ")
}
