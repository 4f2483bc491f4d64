// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package decode

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/ManuGH/liveplay/internal/player"
)

const (
	// startPoll is how often a buffered backend checks whether its surface
	// has started.
	startPoll   = 20 * time.Millisecond
	maxBuffered = 600
)

// Buffered keeps video frames in a jitter buffer. Playout starts once the
// surface has started and the buffer holds the configured depth; after that
// frames leave at their timestamps and each tick reports the remaining depth.
type Buffered struct {
	env    player.BackendEnv
	logger zerolog.Logger
	target time.Duration
	ready  chan struct{}
	life   lifecycle
	pace   pacer

	mu     sync.Mutex
	buf    []media.Frame
	filled bool
	signal chan struct{}
}

// NewBuffered starts a buffered backend. It needs a video surface.
func NewBuffered(env player.BackendEnv) (*Buffered, error) {
	if env.Video == nil {
		return nil, ErrNoSurface
	}
	b := &Buffered{
		env:    env,
		logger: log.WithComponent("decode").With().Str(log.FieldBackend, player.BackendBuffered.String()).Logger(),
		target: env.Options.VideoBufferDuration(),
		ready:  make(chan struct{}),
		life:   newLifecycle(),
		pace:   pacer{clock: env.Clock},
		signal: make(chan struct{}, 1),
	}
	go b.run()
	close(b.ready)
	return b, nil
}

func (b *Buffered) Kind() player.BackendKind { return player.BackendBuffered }

func (b *Buffered) Ready() <-chan struct{} { return b.ready }

// WriteFrame appends a video frame to the buffer. Audio is ignored. When the
// buffer is full the oldest frame is dropped.
func (b *Buffered) WriteFrame(f media.Frame) {
	if f.Kind != media.KindVideo || b.life.stopped() {
		return
	}
	b.mu.Lock()
	if len(b.buf) >= maxBuffered {
		b.buf = b.buf[1:]
		metrics.IncFrameDropped(player.BackendBuffered.String())
	}
	b.buf = append(b.buf, f)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Depth is the buffered duration between the oldest and newest frame.
func (b *Buffered) Depth() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depthLocked()
}

func (b *Buffered) depthLocked() time.Duration {
	if len(b.buf) < 2 {
		return 0
	}
	return b.buf[len(b.buf)-1].PTS - b.buf[0].PTS
}

// Destroy stops playout and drops the buffer.
func (b *Buffered) Destroy() error {
	b.life.shutdown()
	b.mu.Lock()
	b.buf = nil
	b.mu.Unlock()
	return nil
}

func (b *Buffered) run() {
	defer close(b.life.done)
	for {
		f, depth, ok := b.next()
		if !ok {
			return
		}
		if !sleep(b.env.Clock, b.pace.delay(f.PTS), b.life.stop) {
			return
		}
		b.env.Video.Render(f)
		b.env.OnTick(media.Tick{PTS: f.PTS, BufferedMs: millis(depth)})
	}
}

// next blocks until a frame may be played out.
func (b *Buffered) next() (media.Frame, time.Duration, bool) {
	for {
		if !b.env.Video.Started() {
			if !b.wait(startPoll) {
				return media.Frame{}, 0, false
			}
			continue
		}

		b.mu.Lock()
		if !b.filled {
			if len(b.buf) == 0 || b.depthLocked() < b.target {
				b.mu.Unlock()
				if !b.wait(0) {
					return media.Frame{}, 0, false
				}
				continue
			}
			b.filled = true
			b.logger.Debug().
				Str(log.FieldEvent, "decode.buffer_filled").
				Dur("depth", b.depthLocked()).
				Msg("jitter buffer filled, starting playout")
		}
		if len(b.buf) == 0 {
			b.mu.Unlock()
			if !b.wait(0) {
				return media.Frame{}, 0, false
			}
			continue
		}
		f := b.buf[0]
		b.buf = b.buf[1:]
		depth := b.depthLocked()
		b.mu.Unlock()
		return f, depth, true
	}
}

// wait blocks for a new frame, stop, or poll when positive.
func (b *Buffered) wait(poll time.Duration) bool {
	var timeout <-chan time.Time
	if poll > 0 {
		timeout = b.env.Clock.After(poll)
	}
	select {
	case <-b.life.stop:
		return false
	case <-b.signal:
		return true
	case <-timeout:
		return true
	}
}
