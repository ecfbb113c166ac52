package sites

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/webstead/foyer/internal/logger"
	"github.com/webstead/foyer/internal/utils"
)

// Watcher invalidates resolver cache entries when the sites root changes,
// so deploys and teardowns become visible before the TTL would expire.
type Watcher struct {
	resolver *Resolver
	logger   logger.Logger
	stopCh   chan struct{}
}

func NewWatcher(r *Resolver, log logger.Logger) *Watcher {
	return &Watcher{
		resolver: r,
		logger:   log,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching the sites root. The caller may treat failure as
// non-fatal: without the watcher the resolver still converges via its TTLs.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if err := fw.Add(w.resolver.Root()); err != nil {
		utils.Close(fw)
		return fmt.Errorf("failed to watch %s: %w", w.resolver.Root(), err)
	}

	go func() {
		defer utils.Close(fw)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				w.handle(ev)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("sites watcher error", logger.Error(err))
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	id := filepath.Base(ev.Name)
	w.resolver.Invalidate(id)
	w.logger.Debug("site cache invalidated",
		logger.String("site", id),
		logger.String("op", ev.Op.String()))
}
