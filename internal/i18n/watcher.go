package i18n

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalogs whenever a file in dir is written, created or renamed.
// It blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, dir string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("i18n: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("i18n: watch %s: %w", dir, err)
	}

	log.Info("watching translation catalogs", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			if err := m.Reload(); err != nil {
				log.Warn("translation catalogs not reloaded", slog.String("file", event.Name), slog.Any("error", err))
				continue
			}
			log.Info("translation catalogs reloaded", slog.String("file", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("translation watcher error", slog.Any("error", err))
		}
	}
}
