// Package watcher reports changes of the served files, so that the
// developer sees which build artifacts the browser will fetch anew.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ErrEmptyLogger is returned when the logger is nil.
var ErrEmptyLogger = errors.New("logger cannot be nil")

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	logger   *log.Logger
	onChange func(fsnotify.Event)
}

// New creates a Watcher for root and every directory below it.
// onChange may be nil.
func New(root string, logger *log.Logger, onChange func(fsnotify.Event)) (*Watcher, error) {
	if logger == nil {
		return nil, ErrEmptyLogger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		fsw:      fsw,
		logger:   logger,
		onChange: onChange,
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run logs the changes until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	w.logger.Info("Artifact changed", "path", filepath.ToSlash(rel), "op", event.Op.String())

	// new directories must be watched too
	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("Can't watch the new directory", "path", rel, "err", err)
		}
	}

	if w.onChange != nil {
		w.onChange(event)
	}
}
