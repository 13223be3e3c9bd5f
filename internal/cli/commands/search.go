package commands

import (
	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search <filename>",
		Short: "Search all catalogs for a model file",
		Long: `Search queries the curated popular list, the bundled model database,
HuggingFace, and Civitai for a filename and reports what each knows.`,
		Example: `  # Search all catalogs
  modelink search sdxl_vae.safetensors --category vae`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res := cmdCtx.Engine.Search(cmd.Context(), args[0], category)
			if effectiveOutput(cmd) == "json" {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderSearchResult(cmd.OutOrStdout(), args[0], res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "checkpoints", "Category for filtered search")
	return cmd
}
