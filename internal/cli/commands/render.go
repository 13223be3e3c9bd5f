package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modelink/modelink/internal/catalog"
	"github.com/modelink/modelink/internal/planner"
	"github.com/modelink/modelink/pkg/core"
)

// effectiveOutput resolves the output flag: "auto" becomes "text" on a
// terminal and "json" when piped, so scripts get parseable output.
func effectiveOutput(cmd *cobra.Command) string {
	mode, _ := cmd.Root().PersistentFlags().GetString("output")
	if cfg, err := ConfigFrom(cmd.Context()); err == nil && mode == "" {
		mode = cfg.OutputFormat
	}
	switch mode {
	case "json", "text":
		return mode
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "text"
	}
	return "json"
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderAnalysis(w io.Writer, a *planner.Analysis) {
	if a.TotalMissing == 0 {
		fmt.Fprintf(w, "All %d model references resolve locally.\n", a.TotalReferences)
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Missing Model", "Category", "Best Match", "Confidence", "Source"})
	for i, m := range a.Missing {
		best, confidence := "-", "-"
		if len(m.Candidates) > 0 {
			best = m.Candidates[0].File.RelativePath
			confidence = fmt.Sprintf("%d", m.Candidates[0].Confidence)
			if m.SuppressedCandidates > 0 {
				confidence += fmt.Sprintf(" (+%d hidden)", m.SuppressedCandidates)
			}
		}
		source := "-"
		if m.DownloadSource != nil {
			source = string(m.DownloadSource.Kind)
		}
		t.AppendRow(table.Row{i + 1, m.OriginalPath, m.Category, best, confidence, source})
	}
	t.Render()
	fmt.Fprintf(w, "%d of %d references missing\n", a.TotalMissing, a.TotalReferences)
}

func renderSearchResult(w io.Writer, filename string, res catalog.SearchResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Catalog", "Match", "URL", "Size"})

	appendSource := func(name string, src *core.DownloadSource) {
		if src == nil {
			t.AppendRow(table.Row{name, "-", "-", "-"})
			return
		}
		t.AppendRow(table.Row{name, src.Filename, src.URL, formatBytes(src.Size)})
	}
	appendSource("popular", res.Popular)
	appendSource("model list", res.ModelList)
	for _, hit := range res.HuggingFace {
		t.AppendRow(table.Row{"huggingface", hit.Name, hit.URL, "-"})
	}
	for _, hit := range res.Civitai {
		t.AppendRow(table.Row{"civitai", hit.Name, hit.URL, "-"})
	}
	t.Render()
	fmt.Fprintf(w, "Results for %s\n", filename)
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
