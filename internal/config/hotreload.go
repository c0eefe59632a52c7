package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler receives the freshly loaded config after a change on disk.
type ReloadHandler func(cfg *Config)

// Watcher reloads the config file when it changes. Only the long-lived
// listener process uses this; the once-a-day brief run loads config exactly
// once. Writes are debounced so editors that save in multiple syscalls
// trigger a single reload.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	stop     chan struct{}

	mu       sync.Mutex
	handlers []ReloadHandler
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		fsw:      fsw,
		debounce: 300 * time.Millisecond,
	}, nil
}

// OnReload registers a handler invoked after each successful reload.
func (w *Watcher) OnReload(h ReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. Stop must be called to release the inotify handle.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.path); err != nil {
		return err
	}
	w.stop = make(chan struct{})
	go w.loop()
	slog.Info("config watcher started", "path", w.path)
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	if w.stop != nil {
		close(w.stop)
	}
	w.fsw.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running on the previous config; a half-saved file is common.
		slog.Error("config reload failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	handlers := make([]ReloadHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	slog.Info("config reloaded", "path", w.path)
}
