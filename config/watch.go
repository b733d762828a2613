package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on write events. A cooldown suppresses the
// event bursts editors and atomic-save tools produce.
type Watcher struct {
	Path     string
	Cooldown time.Duration

	mu         sync.Mutex
	lastReload time.Time
}

// Start watches until ctx is cancelled; onUpdate receives each config that
// loads and validates cleanly. Invalid intermediate states are skipped.
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 5 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleChange(onUpdate)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func (w *Watcher) handleChange(onUpdate func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastReload) < w.Cooldown {
		return
	}
	cfg, err := LoadWithEnvOverrides(w.Path)
	if err != nil {
		return
	}
	w.lastReload = time.Now()
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
