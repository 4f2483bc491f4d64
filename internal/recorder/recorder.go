// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recorder captures the raw stream of a playback session to disk.
// A recording is written to a pending file and only appears under its final
// name once saved; saved recordings can be listed from a SQLite catalog.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/log"
)

var (
	// ErrNotRecording is returned by Write when no recording is active.
	ErrNotRecording = errors.New("recorder: not recording")
	// ErrDestroyed is returned by StartRecord after Destroy.
	ErrDestroyed = errors.New("recorder: destroyed")
)

const (
	// Extension is appended to names that carry none.
	Extension      = ".ts"
	catalogTimeout = 5 * time.Second
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithCatalog records every saved file in c.
func WithCatalog(c *Catalog) Option {
	return func(r *Recorder) { r.catalog = c }
}

// WithClock sets the clock used for default names and timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// Recorder writes stream bytes to a file between StartRecord and
// StopRecordAndSave. It is safe for concurrent use.
type Recorder struct {
	dir     string
	clock   clock.Clock
	catalog *Catalog
	logger  zerolog.Logger

	mu        sync.Mutex
	pending   *renameio.PendingFile
	path      string
	started   time.Time
	written   int64
	destroyed bool
}

// New returns a recorder saving into dir, which is created if missing.
func New(dir string, opts ...Option) (*Recorder, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}
	r := &Recorder{
		dir:    dir,
		clock:  clock.Real(),
		logger: log.WithComponent("recorder"),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// StartRecord opens a pending file for name. An empty name gets a
// timestamped default. It is a no-op while already recording.
func (r *Recorder) StartRecord(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return ErrDestroyed
	}
	if r.pending != nil {
		return nil
	}

	now := r.clock.Now()
	path := filepath.Join(r.dir, FileName(name, now))
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("recorder: create pending file: %w", err)
	}
	r.pending, r.path, r.started, r.written = pf, path, now, 0
	r.logger.Debug().Str(log.FieldPath, path).Msg("recording opened")
	return nil
}

// Write appends p to the active recording.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return 0, ErrNotRecording
	}
	n, err := r.pending.Write(p)
	r.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("recorder: write: %w", err)
	}
	return n, nil
}

// StopRecordAndSave atomically moves the recording to its final name and
// returns the path. It returns "" and no error when not recording.
func (r *Recorder) StopRecordAndSave() (string, error) {
	r.mu.Lock()
	pf, path, started, written := r.pending, r.path, r.started, r.written
	r.pending = nil
	r.mu.Unlock()
	if pf == nil {
		return "", nil
	}

	defer func() {
		if err := pf.Cleanup(); err != nil {
			r.logger.Debug().Err(err).Msg("cleanup pending recording")
		}
	}()
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("recorder: save %s: %w", path, err)
	}

	if r.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()
		err := r.catalog.Add(ctx, Entry{
			Path:      path,
			Name:      filepath.Base(path),
			SizeBytes: written,
			StartedAt: started,
			SavedAt:   r.clock.Now(),
		})
		if err != nil {
			// The file is saved; a missing catalog row is not fatal.
			r.logger.Warn().Err(err).Str(log.FieldPath, path).Msg("catalog insert failed")
		}
	}
	return path, nil
}

// Destroy discards an unsaved recording. Later StartRecord calls fail.
func (r *Recorder) Destroy() error {
	r.mu.Lock()
	pf := r.pending
	r.pending = nil
	r.destroyed = true
	r.mu.Unlock()
	if pf == nil {
		return nil
	}
	if err := pf.Cleanup(); err != nil {
		return fmt.Errorf("recorder: discard pending file: %w", err)
	}
	return nil
}

// FileName turns a user supplied name into a safe file name.
func FileName(name string, now time.Time) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "liveplay-" + now.UTC().Format("20060102-150405")
	}
	if filepath.Ext(name) == "" {
		name += Extension
	}
	return name
}
