package host

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads a tenant whenever its context document is written. It
// watches the tenants constructed when it is called, including those whose
// load failed, and returns when ctx is done.
func (h *Host) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	docs := h.documents()
	dirs := make(map[string]struct{})
	for doc := range docs {
		dir := filepath.Dir(doc)
		if _, ok := dirs[dir]; ok {
			continue
		}
		// Editors replace files, so the directory is watched rather than
		// the document.
		if err := watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, ok := docs[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			if _, err := h.Reload(name); err != nil {
				h.logger.Warn("reload after document change failed",
					zap.String("tenant", name), zap.Error(err))
				continue
			}
			h.logger.Info("tenant reloaded", zap.String("tenant", name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("watch tenant documents", zap.Error(err))
		}
	}
}
