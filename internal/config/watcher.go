// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for hidebar.
package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// defaultDebounce is how long the watcher waits after the last change
// before reloading. Editors often write a file several times in a row
// (truncate, write, chmod); debouncing collapses those into one reload.
const defaultDebounce = 250 * time.Millisecond

// Watcher watches the config file and delivers reloaded snapshots.
//
// Editors rarely write in place: most save through a rename, which
// replaces the inode. The watcher therefore watches the config
// directory and filters events down to the config file by name, so
// reloads survive rename-style saves.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending time.Time // Zero when no reload is pending
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for the config file at path. Each time the
// file settles after a change, onReload is called with the freshly loaded
// configuration. Reload errors are logged and the previous configuration
// stays in effect.
func NewWatcher(path string, onReload func(*Config), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onReload: onReload,
		logger:   logger,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}

	return w, nil
}

// Watch starts watching for config file changes.
func (w *Watcher) Watch() error {
	// Watch the directory, not the file: rename-style saves replace the
	// file's inode and a file-level watch would go stale after the first
	// save.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	// Start event processing goroutine
	go w.processEvents()

	// Start debounce timer goroutine
	go w.processPending()

	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// processEvents processes file system events.
func (w *Watcher) processEvents() {
	// Add panic recovery to prevent crashes
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config watcher panic", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only the config file itself is interesting
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			// Write, Create, and Rename all mean new content landed
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// processPending reloads the config once pending changes settle.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if !due {
				continue
			}

			cfg, err := LoadFromPath(w.path)
			if err != nil {
				// Keep running with the previous config
				w.logger.Warn("config reload failed",
					zap.String("path", w.path),
					zap.Error(err))
				continue
			}

			w.logger.Info("config reloaded", zap.String("path", w.path))
			w.onReload(cfg)
		}
	}
}
