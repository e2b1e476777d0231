package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/voicekb/voicekb/internal/compose"
	"github.com/voicekb/voicekb/internal/config"
	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/stack"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	definition *config.Config
	builder    *stack.Builder
}

// NewApp is the constructor for the main application. It loads the
// deployment definition and composes the stack; a failure in either is a
// fatal startup error and panics, to be recovered by the caller.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	definition, err := config.Load(ctx, appConfig.DefinitionPath)
	if err != nil {
		panic(fmt.Errorf("failed to load deployment definition: %w", err))
	}
	logger.Debug("Deployment definition loaded.")

	builder, err := compose.Compose(ctx, definition)
	if err != nil {
		panic(fmt.Errorf("failed to compose stack: %w", err))
	}
	logger.Debug("Stack composed.", "entity_count", len(builder.EntityIDs()))

	return &App{
		outW:       outW,
		logger:     logger,
		config:     appConfig,
		definition: definition,
		builder:    builder,
	}
}

// Builder returns the composed stack. This is primarily for testing.
func (a *App) Builder() *stack.Builder {
	return a.builder
}

// Definition returns the loaded deployment definition. Primarily for testing.
func (a *App) Definition() *config.Config {
	return a.definition
}
