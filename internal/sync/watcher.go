package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"filekeep/internal/keep"
)

// Watcher observes a root recursively and maps every file
// create/modify/delete 1:1 to an Event on the queue. Directory-level
// events are not forwarded; a new directory instead extends the watch
// so files created inside it are seen.
//
// fsnotify watches single directories, so recursion is emulated by
// walking the tree at start and adding watches as directories appear.
// A delete observed for a path cannot be distinguished from a deleted
// directory after the fact; such events reach the worker, whose
// replica removal tolerates a missing counterpart.
type Watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	events chan<- Event
	logger keep.Logger
}

// NewWatcher creates a recursive watcher for root, delivering events
// into the given queue.
func NewWatcher(root string, events chan<- Event, logger keep.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, root: root, events: events, logger: logger}
	if err := w.watchTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchTree adds a watch for dir and every directory below it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
		}
		return nil
	})
}

// Run forwards notifications until the context is cancelled or the
// underlying watcher closes. It is the queue's only producer.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	var kind EventKind
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Extend the watch; directory events themselves are ignored.
			if err := w.watchTree(ev.Name); err != nil {
				w.logger.Error("extending watch", "path", ev.Name, "error", err)
			}
			return
		}
		kind = Created
	case ev.Op.Has(fsnotify.Write):
		kind = Modified
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		kind = Deleted
	default:
		return
	}

	select {
	case <-ctx.Done():
	case w.events <- Event{Kind: kind, Path: ev.Name}:
	}
}

// Close shuts down the underlying fsnotify watcher, which also
// unblocks Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
