package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <workflow.json>",
		Short: "Report model references a workflow cannot satisfy locally",
		Long: `Analyze extracts every model reference from a workflow, checks each
against the local library, and reports missing models together with
close local matches and known download sources.`,
		Example: `  # Analyze a workflow
  modelink analyze workflow.json

  # Machine-readable report
  modelink analyze workflow.json --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading workflow: %w", err)
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			analysis, err := cmdCtx.Engine.Analyze(cmd.Context(), raw)
			if err != nil {
				return err
			}

			if effectiveOutput(cmd) == "json" {
				return renderJSON(cmd.OutOrStdout(), analysis)
			}
			renderAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
}
