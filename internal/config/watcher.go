package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeCallback is invoked after a successful reload with the previous and
// new configuration.
type ChangeCallback func(old, new *Config)

// Watcher hot-reloads the config file and notifies subscribers. Reload
// failures keep the last good configuration.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	logger    *zap.Logger
	callbacks []ChangeCallback
	current   *Config
	stopCh    chan struct{}
	started   bool
	mu        sync.RWMutex
}

// NewWatcher creates a watcher for path with an already-loaded initial
// configuration.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		watcher: fw,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
	}, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback for configuration changes.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the config file's directory. Editors replace files
// on save, so watching the directory survives inode changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	w.logger.Info("Config watcher started", zap.String("path", w.path))
	return nil
}

// Stop ends watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	close(w.stopCh)
	_ = w.watcher.Close()
	w.started = false
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce bursts of write events from a single save.
	var pending *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Warn("Config reload failed; keeping last good config",
				zap.String("path", w.path), zap.Error(err))
			return
		}
		w.mu.Lock()
		old := w.current
		w.current = cfg
		cbs := make([]ChangeCallback, len(w.callbacks))
		copy(cbs, w.callbacks)
		w.mu.Unlock()

		w.logger.Info("Configuration reloaded", zap.String("path", w.path))
		for _, cb := range cbs {
			cb(old, cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}
