package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the model library and report its contents",
		Long: `Scan walks every configured model directory and reports how many
model files each category holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			counts := cmdCtx.Engine.Index().CountByCategory()
			history, err := cmdCtx.Engine.DownloadHistory(10)
			if err != nil {
				return fmt.Errorf("loading download history: %w", err)
			}
			if effectiveOutput(cmd) == "json" {
				return renderJSON(cmd.OutOrStdout(), map[string]any{
					"files":      cmdCtx.Engine.Index().Len(),
					"categories": counts,
					"downloads":  history,
				})
			}

			categories := make([]string, 0, len(counts))
			for cat := range counts {
				categories = append(categories, cat)
			}
			sort.Strings(categories)

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Category", "Files"})
			for _, cat := range categories {
				t.AppendRow(table.Row{cat, counts[cat]})
			}
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "%d model file(s) indexed\n", cmdCtx.Engine.Index().Len())

			if len(history) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				h := newTable(cmd.OutOrStdout())
				h.AppendHeader(table.Row{"Recent Download", "Category", "Size", "Status"})
				for _, rec := range history {
					h.AppendRow(table.Row{rec.Filename, rec.Category,
						formatBytes(rec.BytesDownloaded), string(rec.State)})
				}
				h.Render()
			}
			return nil
		},
	}
}
