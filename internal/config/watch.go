package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay batches the several write events editors emit for one save
const reloadDelay = 200 * time.Millisecond

// Watch calls onChange with the reloaded config every time the file at path
// is written, until ctx is done. The parent directory is watched so that
// editors replacing the file atomically are seen too.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDelay)
				} else {
					timer.Reset(reloadDelay)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := LoadFrom(path)
				if err != nil {
					logger.Warn("Ignoring unreadable config change", logger.F("path", path), logger.F("error", err))
					continue
				}
				logger.Info("Config reloaded", logger.F("path", path))
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", logger.F("error", err))
			}
		}
	}()

	return nil
}
