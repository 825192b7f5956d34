package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Invalidator drops cached catalog state. *mailcapture.Catalog implements it.
type Invalidator interface {
	Invalidate()
}

// Watcher invalidates a catalog whenever record files appear or disappear
// in its directory, so captures written by other processes show up without
// a restart.
type Watcher struct {
	dir    string
	target Invalidator
	logger *slog.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher starts watching dir. Events are only acted on once Run is called.
func NewWatcher(dir string, target Invalidator, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:    dir,
		target: target,
		logger: logger,
		fsw:    fsw,
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.target.Invalidate()
			w.logger.Debug("capture directory changed",
				slog.String("file", filepath.Base(ev.Name)),
				slog.String("op", ev.Op.String()))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("dir", w.dir), slog.Any("error", err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant reports whether ev adds or removes a record file.
// Temporary files from atomic writes are ignored; their rename produces a
// create event for the final name.
func relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, Ext) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
