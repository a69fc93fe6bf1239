package credibility

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the table whenever the file at path changes, until ctx
// is cancelled. A failed reload keeps the previous table; scoring is
// never left without one.
func (t *Table) Watch(ctx context.Context, path string, log *zap.Logger) error {
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
				if err := t.Reload(path); err != nil {
					log.Warn("credibility table reload failed, keeping previous table",
						zap.String("path", path), zap.Error(err))
					continue
				}
				log.Info("credibility table reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("credibility table watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
