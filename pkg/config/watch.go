package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/fitmatch/insights/pkg/observability"
)

// WatchLogLevel re-reads the YAML file at path whenever it changes and
// applies its log level to logger. The environment still wins: when
// INSIGHTS_LOG_LEVEL is set the file is ignored. It returns once the watch is
// established; the watch ends when ctx is cancelled.
func WatchLogLevel(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
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
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadLogLevel(path, logger)
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

func reloadLogLevel(path string, logger *observability.Logger) {
	if getEnv("INSIGHTS_LOG_LEVEL", "") != "" {
		return
	}

	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		logger.WithError(err).Warn("ignoring unreadable config change")
		return
	}
	level, err := observability.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("ignoring invalid log level")
		return
	}
	if level != logger.Level() {
		logger.SetLevel(level)
		logger.WithField("level", level.String()).Info("log level changed")
	}
}
