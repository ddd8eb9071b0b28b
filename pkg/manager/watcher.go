package manager

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches bursts of filesystem events, such as an editor's
// write-then-rename, into one catalog reload.
const watchDebounce = 250 * time.Millisecond

// startWatcher observes the per-item directory for external edits and
// debounces them into a catalog reload plus a rebuild request. The
// manager's own saves land in the same directory; the reload they cause
// reads back exactly what was written, so the extra rebuild coalesces
// harmlessly.
func (m *Manager) startWatcher() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(m.catalog.ItemsDir()); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	var once sync.Once

	var mu sync.Mutex
	var pending *time.Timer
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(watchDebounce, m.reloadCatalog)
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !relevantCatalogEvent(event) {
					continue
				}
				m.log.Debug("catalog changed on disk", "path", event.Name, "op", event.Op.String())
				trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	stop := func() {
		once.Do(func() {
			close(done)
			_ = watcher.Close()
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
		})
	}
	return stop, nil
}

// relevantCatalogEvent filters out temp files from atomic writes and
// events that cannot change item content.
func relevantCatalogEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".tmp")
}

// reloadCatalog re-reads the catalog from disk, swaps it in, and requests
// a rebuild.
func (m *Manager) reloadCatalog() {
	registry, err := m.catalog.LoadAll(context.Background())
	if err != nil {
		m.log.Error("catalog reload failed", "error", err)
		return
	}
	m.swapRegistry(registry)
	m.afterCatalogChange(registry)
}
