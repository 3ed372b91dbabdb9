package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/docflow/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // walk the roots once before watching
	SkipHidden  bool          // ignore dotfiles and dot-directories
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// Watcher feeds filesystem arrivals into the sink after a debounce
// window. Editors and downloaders touch a file several times in quick
// succession; the window collapses that into one enqueue.
type Watcher struct {
	cfg    WatchConfig
	sink   Sink
	logger *slog.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// StartWatcher wires the roots, optionally runs the initial scan, and
// spawns the event loop. The loop exits when ctx is canceled; Done
// reports when it has.
func StartWatcher(ctx context.Context, cfg WatchConfig, sink Sink, logger *slog.Logger) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no watch roots configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, sink: sink, logger: logger, fsw: fsw, done: make(chan struct{})}

	for _, root := range cfg.Roots {
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
	}

	if cfg.InitialScan {
		for _, root := range cfg.Roots {
			if _, err := ScanDirectory(ctx, root, cfg.SkipHidden, sink, logger); err != nil {
				w.logger.Warn("ingest.scan.failed", "root", root, "error", err)
			}
		}
	}

	go w.loop(ctx)
	return w, nil
}

// Done is closed once the event loop has exited and the underlying
// watcher is released.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("ingest.watcher.close", "error", err)
		}
	}()

	var mu sync.Mutex // flush fires on the timer goroutine
	pending := make(map[string]constants.ItemKind)
	var timer *time.Timer

	flush := func() {
		mu.Lock()
		defer mu.Unlock()
		for path, kind := range pending {
			delete(pending, path)
			if w.sink.Enqueue(path, kind) {
				w.logger.Info("ingest.enqueued", "path", path, "kind", kind)
			} else {
				w.logger.Debug("ingest.duplicate", "path", path)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				w.tryAddDir(e.Name)
			}
			// Renamed-away paths are dead; a rename into a watched
			// directory surfaces as Create.
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if w.cfg.SkipHidden && IsHidden(e.Name) {
				continue
			}
			kind, supported := constants.KindForExt(filepath.Ext(e.Name))
			if !supported {
				continue
			}
			mu.Lock()
			pending[e.Name] = kind
			mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.cfg.Debounce, flush)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("ingest.watcher.error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if w.cfg.SkipHidden && IsHidden(path) && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// tryAddDir starts watching a directory that appeared after startup,
// including anything already nested inside it.
func (w *Watcher) tryAddDir(path string) {
	st, err := os.Stat(path)
	if err != nil || !st.IsDir() {
		return
	}
	if w.cfg.SkipHidden && IsHidden(path) {
		return
	}
	if err := w.addRecursive(path); err != nil {
		w.logger.Warn("ingest.watch.add_failed", "path", path, "error", err)
	}
}
