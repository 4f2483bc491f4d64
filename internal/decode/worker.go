// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package decode

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/player"
)

// Worker renders frames on its own goroutine. Audio goes straight to the
// audio sink; video is held until its timestamp is due, then rendered and
// reported as a tick.
type Worker struct {
	env    player.BackendEnv
	logger zerolog.Logger
	frames chan media.Frame
	ready  chan struct{}
	life   lifecycle
	pace   pacer

	lastQueued atomic.Int64
}

// NewWorker starts a worker backend. It is ready immediately.
func NewWorker(env player.BackendEnv) *Worker {
	w := &Worker{
		env:    env,
		logger: log.WithComponent("decode").With().Str(log.FieldBackend, player.BackendWorker.String()).Logger(),
		frames: make(chan media.Frame, queueSize),
		ready:  make(chan struct{}),
		life:   newLifecycle(),
		pace:   pacer{clock: env.Clock},
	}
	go w.run()
	close(w.ready)
	return w
}

func (w *Worker) Kind() player.BackendKind { return player.BackendWorker }

func (w *Worker) Ready() <-chan struct{} { return w.ready }

// WriteFrame queues f. It never blocks; frames are dropped when the queue
// is full or the worker is stopped.
func (w *Worker) WriteFrame(f media.Frame) {
	if w.life.stopped() {
		return
	}
	if f.Kind == media.KindVideo {
		w.lastQueued.Store(int64(f.PTS))
	}
	enqueue(w.frames, f, player.BackendWorker)
}

// Destroy stops the worker and waits for it.
func (w *Worker) Destroy() error {
	w.life.shutdown()
	return nil
}

func (w *Worker) run() {
	defer close(w.life.done)
	for {
		select {
		case <-w.life.stop:
			return
		case f := <-w.frames:
			if !w.handle(f) {
				return
			}
		}
	}
}

func (w *Worker) handle(f media.Frame) bool {
	if f.Kind == media.KindAudio {
		if w.env.Audio != nil {
			w.env.Audio.Write(f)
		}
		return true
	}

	if !sleep(w.env.Clock, w.pace.delay(f.PTS), w.life.stop) {
		return false
	}
	if w.env.Video != nil {
		w.env.Video.Render(f)
	}
	buffered := time.Duration(w.lastQueued.Load()) - f.PTS
	w.env.OnTick(media.Tick{PTS: f.PTS, BufferedMs: millis(buffered)})
	return true
}
