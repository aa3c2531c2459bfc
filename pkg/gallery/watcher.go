package gallery

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soulframe/soulframe/internal/log"
)

// debounceWindow batches the burst of fsnotify events the authoring tool
// produces when it rewrites a package.
const debounceWindow = 500 * time.Millisecond

// Watcher rescans the gallery when the authoring tool edits metadata on
// disk, so the installation picks up content changes without a restart.
type Watcher struct {
	manager *Manager
	watcher *fsnotify.Watcher

	// OnReload is called after a successful rescan.
	OnReload func(count int)
}

// NewWatcher creates a watcher over the manager's gallery directory and
// its package subdirectories.
func NewWatcher(manager *Manager) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{manager: manager, watcher: fw}
	if err := w.addAll(); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addAll() error {
	if err := w.watcher.Add(w.manager.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.manager.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			// Best effort; a vanished subdirectory is not fatal.
			w.watcher.Add(filepath.Join(w.manager.dir, e.Name()))
		}
	}
	return nil
}

// Run watches until the context is cancelled. Call in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// New package directories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("gallery watcher error", "err", err)

		case <-timerC:
			timer = nil
			timerC = nil
			count, err := w.manager.Scan()
			if err != nil {
				log.Warn("gallery rescan failed", "err", err)
				continue
			}
			log.Info("gallery reloaded", "images", count)
			if w.OnReload != nil {
				w.OnReload(count)
			}
		}
	}
}

// relevant filters to events that can change loaded content.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	base := filepath.Base(event.Name)
	if base == "metadata.json" {
		return true
	}
	// Directory-level create/remove changes the package set.
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}
