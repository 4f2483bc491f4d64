// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/liveplay/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder holds the current options and reloads them when the config file
// changes. Listeners receive only the changed fields as a Patch.
type Holder struct {
	mu      sync.RWMutex
	current Options
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	listenMu  sync.RWMutex
	listeners []chan<- Patch

	stopOnce sync.Once
}

// NewHolder creates a holder with initial options.
func NewHolder(initial Options, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current options.
func (h *Holder) Get() Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-runs the loader. On failure the old options are kept.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	p := Diff(prev, next)
	if p.Empty() {
		h.logger.Debug().Str(xglog.FieldEvent, "config.reload_noop").Msg("configuration unchanged")
		return nil
	}
	h.notify(p)

	h.logger.Info().
		Str(xglog.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the config file until ctx is done. Without a file
// path this is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(xglog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (no config file)")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = w

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, w)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			h.Stop()
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Write and Create cover in-place edits and rename-on-save editors.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "config.file_changed").
				Str("op", ev.Op.String()).
				Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str(xglog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop closes the watcher. Safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		if h.watcher != nil {
			_ = h.watcher.Close()
		}
	})
}

// RegisterListener adds a channel that receives a Patch after each
// successful reload that changed something. Sends never block; a full
// channel drops the update. The caller owns the channel.
func (h *Holder) RegisterListener(ch chan<- Patch) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(p Patch) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- p:
		default:
			h.logger.Warn().
				Str(xglog.FieldEvent, "config.listener_full").
				Msg("config listener channel full, skipping notification")
		}
	}
}
