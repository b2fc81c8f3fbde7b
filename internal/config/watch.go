package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes and hands the result to
// a callback. Only settings that can change without a restart should be
// acted upon by the callback; cmd/songfix re-applies the logging section.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher creates a Watcher for path.
func NewWatcher(path string, onChange func(*Config), logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger.With("component", "config-watcher"),
		debounce: 250 * time.Millisecond,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run blocks until ctx is canceled. The parent directory is watched rather
// than the file so editors that replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close() //nolint:errcheck

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(w.path)
	w.logger.Info("watching config file", "path", target)

	// Starts stopped; reset on each relevant event.
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)

		case <-timer.C:
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("ignoring invalid config change", "path", target, "error", err)
				continue
			}
			w.logger.Info("config file changed, reloading", "path", target)
			w.onChange(cfg)
		}
	}
}
