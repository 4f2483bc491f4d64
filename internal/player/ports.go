// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"io"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/media"
)

// Transport opens a network source. FetchStream must not block: the outcome
// is published once on Events() as media.StreamSuccess, media.FetchError or
// media.SocketError, and payload bytes go to the writer given at construction.
type Transport interface {
	FetchStream(url string) error
	Events() *bus.Bus
	Destroy() error
}

// Demuxer turns raw stream bytes into frames.
type Demuxer interface {
	io.Writer
	Destroy() error
}

// DecodeBackend consumes frames and reports a tick per rendered video frame.
// Ready is closed once the backend accepts frames.
type DecodeBackend interface {
	Kind() BackendKind
	Ready() <-chan struct{}
	WriteFrame(f media.Frame)
	Destroy() error
}

// VideoSurface presents decoded video.
type VideoSurface interface {
	Play()
	Started() bool
	Render(f media.Frame)
	ClearView()
	Destroy() error
}

// AudioSink plays decoded audio.
type AudioSink interface {
	Volume() float64
	SetVolume(v float64)
	Mute(flag bool)
	Muted() bool
	Pause()
	Write(f media.Frame)
	Destroy() error
}

// Recorder captures raw stream bytes to a file while recording.
type Recorder interface {
	io.Writer
	StartRecord(name string) error
	// StopRecordAndSave finalizes the file and returns its path.
	StopRecordAndSave() (string, error)
	Recording() bool
	Destroy() error
}

// WakeLock keeps the display awake while held.
type WakeLock interface {
	Acquire() error
	Release() error
}

// ControlSurface is an optional user-facing control endpoint.
type ControlSurface interface {
	Destroy() error
}

// BackendEnv is what a decode backend may use.
type BackendEnv struct {
	Options config.Options
	Flags   capability.Flags
	Clock   clock.Clock
	Video   VideoSurface
	Audio   AudioSink
	// OnTick must be called once per rendered video frame. It may block
	// briefly and must not be called while holding a lock Destroy needs.
	OnTick func(media.Tick)
}

// Deps are the collaborators of a Controller. Factories are called lazily.
// Optional fields may be nil.
type Deps struct {
	Clock clock.Clock
	Probe capability.Probe

	NewTransport func(sink io.Writer) (Transport, error)
	NewDemuxer   func(sink media.FrameSink, onBytes func(media.Kind, int)) (Demuxer, error)
	NewBackend   func(kind BackendKind, env BackendEnv) (DecodeBackend, error)

	Video    VideoSurface
	Audio    AudioSink
	Recorder Recorder
	WakeLock WakeLock

	// NewControl is called at construction when the options ask for a
	// control surface.
	NewControl func(c *Controller) (ControlSurface, error)
}
