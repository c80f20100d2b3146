package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
)

// Change reports one catalog entry that was reloaded or removed. Pattern is
// nil when the entry is gone; Slug is always set.
type Change struct {
	File    string
	Slug    string
	Pattern *patternview.Pattern
}

// Watcher reloads catalog entries as their files change.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	onChange func(Change)
	log      *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches c's directory tree. onChange runs on the watcher's
// goroutine after each successful reload or removal.
func NewWatcher(c *Catalog, onChange func(Change)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		catalog:  c,
		watcher:  fsWatcher,
		onChange: onChange,
		log:      c.log.Named("watch"),
		done:     make(chan struct{}),
	}
	if w.onChange == nil {
		w.onChange = func(Change) {}
	}

	if err := w.addDirectoryRecursive(c.dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(info.Name(), ".") || strings.HasPrefix(info.Name(), "_")) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.log.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

// Start begins watching in a new goroutine.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryRecursive(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !isEntry(event.Name) {
		return
	}

	rel, err := filepath.Rel(w.catalog.dir, event.Name)
	if err != nil {
		rel = event.Name
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if slug, ok := w.catalog.Remove(rel); ok {
			w.log.Info("pattern removed", zap.String("file", rel), zap.String("slug", slug))
			w.onChange(Change{File: rel, Slug: slug})
		}

	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		p, err := w.catalog.Reload(rel)
		if err != nil {
			w.log.Warn("reload failed", zap.String("file", rel), zap.Error(err))
			return
		}
		if p == nil {
			return
		}
		w.log.Info("pattern reloaded", zap.String("file", rel), zap.String("slug", p.Slug))
		w.onChange(Change{File: rel, Slug: p.Slug, Pattern: p})
	}
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
