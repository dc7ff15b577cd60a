package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/dshills/hookbus/internal/watcher"
)

// ReloadFunc is called after each reload attempt with the script path and
// the reload error, if any.
type ReloadFunc func(ctx context.Context, path string, err error)

// Watch reloads scripts when their files change until ctx is done.
// onReload may be nil. Watch runs reloads on the calling goroutine, so
// onReload may dispatch hooks.
func (app *Application) Watch(ctx context.Context, onReload ReloadFunc) error {
	w, err := watcher.New(app.config.Scripts.WatchDebounce.Std())
	if err != nil {
		return err
	}
	defer w.Close()

	for _, path := range app.ScriptPaths() {
		if err := w.Watch(path); err != nil {
			return NewOperationError("watch", path, err)
		}
	}

	app.logger.Info("watching scripts", slog.Int("count", len(app.ScriptPaths())))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			app.handleChange(ctx, ev, onReload)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			app.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// handleChange reloads the script behind ev. Editors that save by renaming
// a new file into place report the old file as gone, so a missing file is
// checked for on disk before giving up.
func (app *Application) handleChange(ctx context.Context, ev watcher.Event, onReload ReloadFunc) {
	logger := app.logger.With(slog.String("path", ev.Path), slog.String("op", ev.Op.String()))

	if ev.Op.Gone() {
		if _, err := os.Stat(ev.Path); err != nil {
			logger.Warn("script removed; keeping loaded handlers")
			return
		}
	}

	err := app.ReloadPath(ctx, ev.Path)
	if err != nil {
		logger.Error("reload failed", slog.Any("error", err))
	} else {
		logger.Info("script reloaded")
	}

	if onReload != nil {
		onReload(ctx, ev.Path, err)
	}
}
