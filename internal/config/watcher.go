package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Watcher reloads the configuration file on every write/create event
// and hands the new Config to OnReload. A reload that fails validation
// or parsing is logged and discarded; the previously loaded Config
// keeps being used.
type Watcher struct {
	Path     string
	OnReload func(*Config)
	Logger   logr.Logger
}

// Run blocks, watching Path until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.Path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.Path)
			if err != nil {
				w.Logger.Error(err, "config reload failed, keeping previous configuration", "path", w.Path)
				continue
			}
			w.Logger.Info("configuration reloaded", "path", w.Path)
			w.OnReload(cfg)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error(err, "config watcher error", "path", w.Path)
		}
	}
}
