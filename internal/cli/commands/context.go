package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/modelink/modelink/internal/config"
	"github.com/modelink/modelink/internal/engine"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded configuration in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// ConfigFrom retrieves the configuration placed by the root command.
func ConfigFrom(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("configuration not loaded")
}

// LoggerFrom retrieves the logger, falling back to a discard logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext bundles what every command needs.
type CommandContext struct {
	Config *config.Config
	Logger *slog.Logger
	Engine *engine.Engine
}

// NewCommandContext builds the engine for a command invocation. The
// returned cleanup must be called before the command exits.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg, err := ConfigFrom(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger := LoggerFrom(cmd.Context())

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("closing engine failed", "error", err)
		}
	}
	return &CommandContext{Config: cfg, Logger: logger, Engine: eng}, cleanup, nil
}
