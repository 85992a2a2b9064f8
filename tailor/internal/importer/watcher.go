package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow suppresses the create/write event bursts editors and
// copies produce for a single dropped file.
const debounceWindow = 2 * time.Second

// Watch enqueues template files dropped into the import folder until ctx is
// cancelled. Files already present at startup are enqueued first, so drops
// made while the service was down are not lost.
func (imp *Importer) Watch(ctx context.Context) error {
	if err := os.MkdirAll(imp.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("importer: create drop dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("importer: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(imp.cfg.Dir); err != nil {
		return fmt.Errorf("importer: watch %s: %w", imp.cfg.Dir, err)
	}

	imp.scanExisting(ctx)
	imp.logger.Info("importer: watching", "dir", imp.cfg.Dir)

	lastQueued := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			imp.logger.Info("importer: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			if t, seen := lastQueued[name]; seen && time.Since(t) < debounceWindow {
				continue
			}
			lastQueued[name] = time.Now()
			imp.enqueue(ctx, name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			imp.logger.Error("importer: watch error", "error", watchErr)
		}
	}
}

// scanExisting enqueues *.json files already sitting in the drop folder.
func (imp *Importer) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(imp.cfg.Dir)
	if err != nil {
		imp.logger.Warn("importer: scan drop dir", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		imp.enqueue(ctx, e.Name())
	}
}

func (imp *Importer) enqueue(ctx context.Context, name string) {
	id := newJobID()
	if err := imp.queue.Publish(ctx, id, []byte(name)); err != nil {
		imp.logger.Error("importer: enqueue", "file", name, "error", err)
		return
	}
	imp.logger.Info("importer: queued", "file", name, "job_id", id)
}
