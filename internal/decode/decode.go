// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package decode implements the decode backends a playback session renders
// through: a goroutine pipeline paced by presentation timestamps, a jitter
// buffer that plays out once the surface starts, and a hardware decoder
// running as an ffmpeg subprocess.
package decode

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/ManuGH/liveplay/internal/player"
)

// ErrNoSurface is returned when a backend that renders video gets no surface.
var ErrNoSurface = errors.New("decode: no video surface")

const (
	queueSize = 256
	// maxDrift is the largest gap between wall clock and timestamps that is
	// paced; anything larger is a discontinuity and rebases the pacer.
	maxDrift = 2 * time.Second
)

// New builds the backend of the given kind. It matches player.Deps.NewBackend.
func New(kind player.BackendKind, env player.BackendEnv) (player.DecodeBackend, error) {
	if env.Clock == nil {
		env.Clock = clock.Real()
	}
	if env.OnTick == nil {
		env.OnTick = func(media.Tick) {}
	}
	switch kind {
	case player.BackendWorker:
		return NewWorker(env), nil
	case player.BackendBuffered:
		return NewBuffered(env)
	case player.BackendHardware:
		return NewHardware(env)
	default:
		return nil, fmt.Errorf("decode: unknown backend %v", kind)
	}
}

// lifecycle is the stop/done pair shared by all backends.
type lifecycle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newLifecycle() lifecycle {
	return lifecycle{stop: make(chan struct{}), done: make(chan struct{})}
}

func (l *lifecycle) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// shutdown signals stop and waits for the backend goroutine.
func (l *lifecycle) shutdown() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// enqueue hands f to ch without blocking. A full queue drops the frame.
func enqueue(ch chan<- media.Frame, f media.Frame, kind player.BackendKind) bool {
	select {
	case ch <- f:
		return true
	default:
		metrics.IncFrameDropped(kind.String())
		return false
	}
}

// pacer maps presentation timestamps onto the wall clock.
type pacer struct {
	clock   clock.Clock
	base    time.Time
	basePTS time.Duration
	set     bool
}

// delay returns how long to wait before pts is due.
func (p *pacer) delay(pts time.Duration) time.Duration {
	now := p.clock.Now()
	if !p.set {
		p.rebase(now, pts)
		return 0
	}
	d := p.base.Add(pts - p.basePTS).Sub(now)
	if d > maxDrift || d < -maxDrift {
		p.rebase(now, pts)
		return 0
	}
	return max(d, 0)
}

func (p *pacer) rebase(now time.Time, pts time.Duration) {
	p.base, p.basePTS, p.set = now, pts, true
}

// sleep waits d on c. It returns false if stop closed first.
func sleep(c clock.Clock, d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	select {
	case <-c.After(d):
		return true
	case <-stop:
		return false
	}
}

func millis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Millisecond)
}
