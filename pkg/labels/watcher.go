package labels

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher registers PDF files dropped directly into the label storage
// directory. Operators occasionally copy loose label files onto the host
// instead of uploading an archive; the watcher keeps the index in sync
// with them.
type Watcher struct {
	store  *Store
	logger *slog.Logger
}

// NewWatcher creates a Watcher over the store's directory.
func NewWatcher(store *Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{store: store, logger: logger}
}

// Run watches the label directory until the context is cancelled. Existing
// unregistered files are picked up once at startup.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.sweep(); err != nil {
		w.logger.Error("initial label dir sweep failed", "error", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.store.Dir()); err != nil {
		return err
	}
	w.logger.Info("watching label directory", "dir", w.store.Dir())

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.maybeRegister(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("label watcher error", "error", err)
		}
	}
}

// sweep registers any loose PDFs already present in the directory.
func (w *Watcher) sweep() error {
	entries, err := filepath.Glob(filepath.Join(w.store.Dir(), "*.pdf"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		w.maybeRegister(path)
	}
	return nil
}

func (w *Watcher) maybeRegister(path string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	// Register is a no-op for paths already in the index, which covers
	// files written by the store itself.
	record, err := w.store.Register(stem, path)
	if err != nil {
		w.logger.Debug("skipping label file", "path", path, "error", err)
		return
	}
	if record != nil {
		w.logger.Info("registered dropped label file", "trackingNo", record.TrackingNo, "path", path)
	}
}
