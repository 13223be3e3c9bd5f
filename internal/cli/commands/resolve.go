package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var (
		outFile string
		write   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <workflow.json>",
		Short: "Patch a workflow to use locally resolved model paths",
		Long: `Resolve patches every model reference whose local match is certain,
meaning the exact file exists under a different path. References without
a certain match are left untouched and reported.

The input file is never modified unless --write is given.`,
		Example: `  # Print the patched workflow to stdout
  modelink resolve workflow.json

  # Write the patched workflow next to the original
  modelink resolve workflow.json --out workflow.resolved.json

  # Patch the workflow in place
  modelink resolve workflow.json --write`,
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

			patched, count, unresolved, err := cmdCtx.Engine.AutoResolve(cmd.Context(), raw)
			if err != nil {
				return err
			}

			switch {
			case write:
				if err := os.WriteFile(args[0], patched, 0o644); err != nil {
					return fmt.Errorf("writing workflow: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Patched %d reference(s) in %s\n", count, args[0])
			case outFile != "":
				if err := os.WriteFile(outFile, patched, 0o644); err != nil {
					return fmt.Errorf("writing workflow: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Patched %d reference(s) into %s\n", count, outFile)
			default:
				if _, err := cmd.OutOrStdout().Write(patched); err != nil {
					return err
				}
			}

			for _, m := range unresolved {
				fmt.Fprintf(cmd.ErrOrStderr(), "unresolved: %s (%s), best confidence %d\n",
					m.OriginalPath, m.Category, m.BestConfidence())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Write the patched workflow to this file")
	cmd.Flags().BoolVar(&write, "write", false, "Patch the workflow file in place")
	return cmd
}
