package graph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeloom/internal/logging"
)

// WatcherConfig holds the file watcher settings.
type WatcherConfig struct {
	Enabled    bool
	DebounceMs int
	MaxWatches int
}

// Watcher keeps the graph current by re-ingesting files as they change on
// disk. Events are debounced so rapid editor saves collapse into one update.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	ingester   *Ingester
	debounceMs int
	maxWatches int

	mu       sync.Mutex
	pending  map[string]time.Time
	running  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over root that feeds the given ingester. A
// disabled config returns an inert watcher whose Start is a no-op.
func NewWatcher(root string, ingester *Ingester, cfg WatcherConfig) (*Watcher, error) {
	if !cfg.Enabled {
		return &Watcher{}, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = 500
	}
	if cfg.MaxWatches <= 0 {
		cfg.MaxWatches = 1000
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		root:       root,
		ingester:   ingester,
		debounceMs: cfg.DebounceMs,
		maxWatches: cfg.MaxWatches,
		pending:    make(map[string]time.Time),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching. The context bounds the lifetime of the re-ingest
// calls triggered by file changes.
func (w *Watcher) Start(ctx context.Context) error {
	if w.fsWatcher == nil {
		return nil
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return err
	}

	go w.processEvents()
	go w.processDebounce(ctx)

	logging.Info("graph watcher started", "root", w.root, "watched", len(w.fsWatcher.WatchList()))
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	if w.fsWatcher == nil {
		return nil
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
	return w.fsWatcher.Close()
}

func (w *Watcher) addDirectories() error {
	count := 0
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if count >= w.maxWatches {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			return nil
		}
		if skipDirName(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return nil
		}
		count++
		return nil
	})
}

func skipDirName(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", "dist", "build", ".idea", ".vscode":
		return true
	}
	return false
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("graph watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if len(base) > 0 && (base[0] == '.' || base[0] == '#' || base[len(base)-1] == '~') {
		return
	}

	// A new directory gets added to the watch list.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirName(info.Name()) {
				w.mu.Lock()
				if len(w.fsWatcher.WatchList()) < w.maxWatches {
					_ = w.fsWatcher.Add(event.Name)
				}
				w.mu.Unlock()
			}
			return
		}
	}

	if detectLanguage(event.Name) == "" {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounce(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.debounceMs/2) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	debounce := time.Duration(w.debounceMs) * time.Millisecond
	var ready []string
	for path, eventTime := range w.pending {
		if now.Sub(eventTime) >= debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	for _, path := range ready {
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			w.ingester.store.ReplaceFile(rel, nil, nil)
			logging.Debug("graph node removed for deleted file", "path", rel)
			continue
		}

		if err := w.ingester.IngestFile(ctx, w.root, rel); err != nil {
			logging.Warn("graph update failed", "path", rel, "error", err)
			continue
		}
		logging.Debug("graph updated", "path", rel)
	}

	if err := w.ingester.store.Save(); err != nil {
		logging.Warn("graph save failed", "error", err)
	}
}
