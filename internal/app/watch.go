package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voicekb/voicekb/internal/compose"
	"github.com/voicekb/voicekb/internal/config"
)

// debounceWindow coalesces the bursts of filesystem events editors emit for
// a single save.
const debounceWindow = 250 * time.Millisecond

// watchAndSynth renders once, then re-renders whenever a definition file
// changes, until the context ends. A broken definition is logged and skipped;
// the watcher keeps running so the next save can fix it.
func (a *App) watchAndSynth(ctx context.Context) error {
	if err := a.runSynth(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(a.config.DefinitionPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.config.DefinitionPath, err)
	}
	a.logger.Info("👀 Watching definition for changes.", "path", a.config.DefinitionPath)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("Watcher error.", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".hcl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(debounceWindow)
		case <-pending:
			pending = nil
			a.resynth(ctx)
		}
	}
}

// resynth reloads the definition, recomposes, and re-renders. Errors are
// reported but never stop the watch loop.
func (a *App) resynth(ctx context.Context) {
	definition, err := config.Load(ctx, a.config.DefinitionPath)
	if err != nil {
		a.logger.Error("Definition reload failed, keeping previous template.", "error", err)
		return
	}
	builder, err := compose.Compose(ctx, definition)
	if err != nil {
		a.logger.Error("Stack composition failed, keeping previous template.", "error", err)
		return
	}
	a.definition = definition
	a.builder = builder

	if err := a.runSynth(ctx); err != nil {
		a.logger.Error("Template render failed.", "error", err)
		return
	}
	a.logger.Info("🔁 Template re-rendered after definition change.")
}
