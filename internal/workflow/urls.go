package workflow

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/modelink/modelink/pkg/core"
)

// EmbeddedSource is a download origin carried inside the workflow itself,
// keyed by model filename.
type EmbeddedSource struct {
	URL       string
	Directory string
}

var (
	// urlPattern matches HuggingFace and Civitai URLs anywhere in the
	// serialized workflow.
	urlPattern = regexp.MustCompile(`https?://(?:huggingface\.co|civitai\.com)[^\s"'<>)\\]+`)

	// filenamePattern matches model filenames by extension.
	filenamePattern = regexp.MustCompile(`(?i)([\w\-.%]+\.(?:safetensors|ckpt|pt|pth|bin|onnx))`)
)

// ExtractEmbeddedSources collects download URLs embedded in the workflow.
// Node properties ("properties.models" entries with name/url/directory)
// are authoritative; raw URLs found in the serialized JSON fill in the
// rest by filename containment, trying the decoded name, the original
// possibly URL-encoded name, then the extension-stripped base.
func ExtractEmbeddedSources(g Graph) map[string]EmbeddedSource {
	sources := make(map[string]EmbeddedSource)

	for _, node := range allNodes(g) {
		props, _ := node["properties"].(map[string]any)
		if props == nil {
			continue
		}
		models, _ := props["models"].([]any)
		for _, m := range models {
			entry, ok := m.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			u, _ := entry["url"].(string)
			dir, _ := entry["directory"].(string)
			if name == "" {
				continue
			}
			if _, exists := sources[name]; !exists {
				sources[name] = EmbeddedSource{URL: u, Directory: dir}
			}
		}
	}

	raw, err := g.Marshal()
	if err != nil {
		return sources
	}
	urls := cleanURLs(urlPattern.FindAllString(string(raw), -1))

	for _, match := range filenamePattern.FindAllString(string(raw), -1) {
		name := strings.TrimSpace(match)
		if name == "" || !isWordStart(name[0]) {
			continue
		}
		decoded := name
		if d, err := url.QueryUnescape(name); err == nil {
			decoded = d
		}
		if s, ok := sources[decoded]; ok && s.URL != "" {
			continue
		}
		base := strings.TrimSuffix(decoded, path.Ext(decoded))
		for _, u := range urls {
			if strings.Contains(u, decoded) || strings.Contains(u, name) || (base != "" && strings.Contains(u, base)) {
				prev := sources[decoded]
				if prev.URL == "" {
					prev.URL = u
					sources[decoded] = prev
				}
				break
			}
		}
	}

	// Drop entries that never gained a URL.
	for name, s := range sources {
		if s.URL == "" {
			delete(sources, name)
		}
	}
	return sources
}

// EmbeddedSourceFor returns the embedded download source for a reference,
// matched by its basename, as a catalog-priority DownloadSource.
func EmbeddedSourceFor(sources map[string]EmbeddedSource, originalPath, category string) *core.DownloadSource {
	name := path.Base(strings.ReplaceAll(originalPath, `\`, "/"))
	s, ok := sources[name]
	if !ok || s.URL == "" {
		return nil
	}
	dir := s.Directory
	if dir == "" {
		dir = category
	}
	return &core.DownloadSource{
		URL:       s.URL,
		Filename:  name,
		Directory: dir,
		Kind:      core.SourceWorkflowEmbedded,
		MatchType: core.MatchExact,
	}
}

// allNodes yields top-level nodes followed by subgraph-definition nodes.
func allNodes(g Graph) []map[string]any {
	var out []map[string]any
	for _, n := range g.nodes() {
		if node, ok := n.(map[string]any); ok {
			out = append(out, node)
		}
	}
	for _, s := range g.subgraphs() {
		sg, ok := s.(map[string]any)
		if !ok {
			continue
		}
		sgNodes, _ := sg["nodes"].([]any)
		for _, n := range sgNodes {
			if node, ok := n.(map[string]any); ok {
				out = append(out, node)
			}
		}
	}
	return out
}

// cleanURLs strips trailing junk regex capture can pick up.
func cleanURLs(urls []string) []string {
	out := urls[:0]
	for _, u := range urls {
		u = strings.Split(u, ")")[0]
		u = strings.ReplaceAll(u, `\n`, "")
		u = strings.TrimSpace(u)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func isWordStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
