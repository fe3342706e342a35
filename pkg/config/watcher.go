package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/warden/pkg/observability"
)

// WatchLogLevel watches the config file for changes and applies the log level
// to the logger without a restart. Other settings still require one. Returns
// immediately when no config file is in use.
func WatchLogLevel(ctx context.Context, path string, logger *observability.Logger) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg := defaults()
				if err := loadFile(cfg, path); err != nil {
					logger.WithError(err).Warn("config reload skipped: file unreadable")
					continue
				}
				level := observability.ParseLogLevel(cfg.Observability.LogLevel)
				logger.SetLevel(level)
				logger.WithField("level", level.String()).Info("log level reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("config watcher error")
			}
		}
	}()

	return nil
}
