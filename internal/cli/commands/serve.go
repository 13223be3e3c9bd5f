package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modelink/modelink/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serve starts an HTTP server exposing analyze, resolve, download and
search endpoints. With watching enabled the model index follows
filesystem changes while the server runs.`,
		Example: `  # Serve on the default port
  modelink serve

  # Custom port without filesystem watching
  modelink serve --port 9000 --watch=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if !cmd.Flags().Changed("port") {
				port = cmdCtx.Config.Server.Port
			}
			if !cmd.Flags().Changed("watch") {
				watch = cmdCtx.Config.Server.Watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				Engine: cmdCtx.Engine,
				Port:   port,
				Watch:  watch,
				Logger: cmdCtx.Logger,
			})
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	cmd.Flags().BoolVar(&watch, "watch", true, "Watch model directories for changes")
	return cmd
}
