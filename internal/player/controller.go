// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player is the playback session controller. It owns the session
// resources (transport, demultiplexer, decode backends, recorder), drives
// the loading/playing state machine from render ticks, supervises the
// session with heartbeat and loading watchdogs and tears everything down in
// a fixed order.
package player

import (
	"errors"
	"sync"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/ManuGH/liveplay/internal/stats"
	"github.com/ManuGH/liveplay/internal/telemetry"
	"github.com/ManuGH/liveplay/internal/watchdog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Phase is a coarse view of the session state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitializing
	PhaseLoading
	PhasePlaying
	PhaseDestroyed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitializing:
		return "initializing"
	case PhaseLoading:
		return "loading"
	case PhasePlaying:
		return "playing"
	case PhaseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session flags.
type State struct {
	Phase     Phase `json:"-"`
	Loading   bool  `json:"loading"`
	Playing   bool  `json:"playing"`
	Recording bool  `json:"recording"`
	HasLoaded bool  `json:"hasLoaded"`
}

// Controller supervises one playback session.
//
// All state transitions happen under mu. Notifications raised during a
// transition are queued and published after mu is released, in order, so
// listeners may call back into the controller. Notifications raised by
// backend ticks are published by the controller's dispatch goroutine, never
// by the backend goroutine itself.
type Controller struct {
	deps      Deps
	clock     clock.Clock
	probe     capability.Probe
	events    *bus.Bus
	stats     *stats.Aggregator
	tracer    trace.Tracer
	logger    zerolog.Logger
	sessionID string

	flags     capability.Flags
	selection Selection

	heart   *watchdog.Deadline
	loadWD  *watchdog.Deadline
	initSF  singleflight.Group
	watchWG sync.WaitGroup

	mu            sync.Mutex
	opts          config.Options
	loading       bool
	playing       bool
	hasLoaded     bool
	webFullscreen bool
	destroyed     bool
	initializing  int
	recordName    string

	// Per-session resources. gen changes whenever the set is created or
	// detached so late callbacks from a previous session are dropped.
	gen         uint64
	sessionDone chan struct{}
	transport   Transport
	demux       Demuxer
	worker      DecodeBackend
	primary     DecodeBackend

	video    VideoSurface
	audio    AudioSink
	recorder Recorder
	control  ControlSurface
	wakeHeld bool
	done     chan struct{}

	outbox      []func()
	dispatching bool
	kick        chan struct{}
}

// New resolves capabilities once, selects the decode backends and creates
// the controller. Session resources are created lazily by Init.
func New(opts config.Options, deps Deps) (*Controller, error) {
	if deps.NewTransport == nil || deps.NewDemuxer == nil || deps.NewBackend == nil {
		return nil, errors.New("player: transport, demuxer and backend factories are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Probe == nil {
		deps.Probe = capability.NewHostProbe(opts.HWDevice, opts.FFmpegBin)
	}

	c := &Controller{
		deps:      deps,
		clock:     deps.Clock,
		probe:     deps.Probe,
		events:    bus.New(),
		stats:     stats.New(deps.Clock),
		tracer:    telemetry.Tracer("liveplay/player"),
		sessionID: uuid.NewString(),
		heart:     watchdog.New("heart", deps.Clock),
		loadWD:    watchdog.New("loading", deps.Clock),
		video:     deps.Video,
		audio:     deps.Audio,
		recorder:  deps.Recorder,
		done:      make(chan struct{}),
		kick:      make(chan struct{}, 1),
	}
	c.logger = log.Derive(func(zc *zerolog.Context) {
		*zc = zc.Str(log.FieldComponent, "player").Str(log.FieldSessionID, c.sessionID)
	})

	res := capability.Resolve(capability.Flags{
		UseHardwareDecode:      opts.UseHardwareDecode,
		UseBufferedPlayback:    opts.UseBufferedPlayback,
		ForceNoOffscreenRender: opts.ForceNoOffscreenRender,
	}, capability.Snapshot(deps.Probe))
	for _, adj := range res.Adjustments {
		c.logger.Info().
			Str(log.FieldEvent, "player.capability_adjusted").
			Str("flag", adj.Flag).
			Bool("from", adj.From).
			Bool("to", adj.To).
			Str(log.FieldReason, adj.Reason).
			Msg("option adjusted to host capabilities")
	}
	c.flags = res.Flags
	c.opts = withFlags(opts, res.Flags)

	c.selection = SelectBackends(res.Flags)
	metrics.IncBackendSelected(c.selection.Primary.String())
	c.logger.Info().
		Str(log.FieldEvent, "player.backend_selected").
		Str(log.FieldBackend, c.selection.Primary.String()).
		Str("gate", c.selection.Gate().String()).
		Msg("decode backend selected")

	if c.audio != nil {
		c.audio.Mute(!opts.IsNotMute)
	}

	if opts.KeepScreenOn && deps.WakeLock != nil {
		if err := deps.WakeLock.Acquire(); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "player.wakelock_failed").Msg("could not keep screen on")
		} else {
			c.wakeHeld = true
		}
	}

	if opts.HasControl() && deps.NewControl != nil {
		ctl, err := deps.NewControl(c)
		if err != nil {
			c.releaseWakeLock()
			return nil, err
		}
		c.control = ctl
	}

	go c.dispatchLoop()
	return c, nil
}

// SessionID identifies the controller in logs and traces.
func (c *Controller) SessionID() string { return c.sessionID }

// Events is the notification bus. Subscribe with bus.Subscribe and the
// Event* topics. Destroy detaches every listener.
func (c *Controller) Events() *bus.Bus { return c.events }

// Selection returns the backend layout chosen at construction.
func (c *Controller) Selection() Selection { return c.selection }

// Flags returns the resolved capability flags.
func (c *Controller) Flags() capability.Flags { return c.flags }

// Options returns a copy of the current options.
func (c *Controller) Options() config.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// UpdateOption overwrites the options named by p. Running watchdogs keep
// their deadline; the new timeout applies from the next arm. Capability
// flags are resolved once in New and stay as resolved.
func (c *Controller) UpdateOption(p config.Patch) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.destroyed || p.Empty() {
		return
	}
	next := withFlags(c.opts.Apply(p), c.flags)
	if differs(p.UseHardwareDecode, c.flags.UseHardwareDecode) ||
		differs(p.UseBufferedPlayback, c.flags.UseBufferedPlayback) ||
		differs(p.ForceNoOffscreenRender, c.flags.ForceNoOffscreenRender) {
		c.logger.Info().
			Str(log.FieldEvent, "player.capability_update_ignored").
			Msg("capability flags only change with a new player")
	}
	c.opts = next
	c.logger.Debug().Str(log.FieldEvent, "player.options_updated").Msg("options updated")
}

// withFlags copies the resolved capability flags into o.
func withFlags(o config.Options, f capability.Flags) config.Options {
	o.UseHardwareDecode = f.UseHardwareDecode
	o.UseBufferedPlayback = f.UseBufferedPlayback
	o.ForceNoOffscreenRender = f.ForceNoOffscreenRender
	return o
}

func differs(p *bool, v bool) bool { return p != nil && *p != v }

// Watch applies patches from updates until Destroy or until updates closes.
func (c *Controller) Watch(updates <-chan config.Patch) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.watchWG.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.watchWG.Done()
		for {
			select {
			case <-c.done:
				return
			case p, ok := <-updates:
				if !ok {
					return
				}
				c.UpdateOption(p)
			}
		}
	}()
}

// State returns the session flags.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Phase:     c.phaseLocked(),
		Loading:   c.loading,
		Playing:   c.playing,
		Recording: c.recordingLocked(),
		HasLoaded: c.hasLoaded,
	}
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.destroyed:
		return PhaseDestroyed
	case c.playing:
		return PhasePlaying
	case c.initializing > 0:
		return PhaseInitializing
	case c.loading:
		return PhaseLoading
	default:
		return PhaseIdle
	}
}

// Playing reports whether frames are being rendered.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetPlaying sets the playing flag. true also clears loading.
func (c *Controller) SetPlaying(v bool) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	c.setPlayingLocked(v)
}

// Loading reports whether Play is waiting for the first frame.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SetLoading sets the loading flag.
func (c *Controller) SetLoading(v bool) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	c.setLoadingLocked(v)
}

// Loaded reports whether a frame has rendered since construction.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLoaded
}

// Stats returns the last completed stats window.
func (c *Controller) Stats() stats.Snapshot { return c.stats.Last() }

// Volume returns the audio volume in [0, 1], or 0 without an audio sink.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volumeLocked()
}

// SetVolume clamps v to [0, 1] and applies it.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.audio == nil {
		return
	}
	v = min(max(v, 0), 1)
	c.audio.SetVolume(v)
	emit(c, EventVolumeChange, v)
}

// Mute mutes or unmutes audio output.
func (c *Controller) Mute(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio != nil {
		c.audio.Mute(flag)
	}
}

type fullscreenSetter interface {
	SetFullscreen(bool)
}

// Fullscreen reports host fullscreen or in-window fullscreen.
func (c *Controller) Fullscreen() bool {
	c.mu.Lock()
	web := c.webFullscreen
	c.mu.Unlock()
	return c.probe.FullscreenActive() || web
}

// SetFullscreen records the host fullscreen request and notifies.
func (c *Controller) SetFullscreen(v bool) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if s, ok := c.probe.(fullscreenSetter); ok {
		s.SetFullscreen(v)
	}
	emit(c, EventFullscreen, v)
}

// WebFullscreen reports in-window fullscreen.
func (c *Controller) WebFullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webFullscreen
}

// SetWebFullscreen sets in-window fullscreen and notifies.
func (c *Controller) SetWebFullscreen(v bool) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	c.webFullscreen = v
	emit(c, EventWebFullscreen, v)
}

func (c *Controller) volumeLocked() float64 {
	if c.audio == nil {
		return 0
	}
	return c.audio.Volume()
}

func (c *Controller) setLoadingLocked(v bool) {
	if c.loading == v {
		return
	}
	c.loading = v
	emit(c, EventLoading, v)
	metrics.SetSessionState(c.loading, c.playing)
}

func (c *Controller) setPlayingLocked(v bool) {
	if v {
		c.setLoadingLocked(false)
	}
	if c.playing == v {
		return
	}
	c.playing = v
	emit(c, EventPlaying, v)
	emit(c, EventVolumeChange, c.volumeLocked())
	if v {
		emit(c, EventPlay, struct{}{})
	} else {
		emit(c, EventPause, struct{}{})
	}
	metrics.SetSessionState(c.loading, c.playing)
	c.logger.Debug().
		Str(log.FieldEvent, "player.playing_changed").
		Bool(log.FieldOldState, !v).
		Bool(log.FieldNewState, v).
		Msg("playing state changed")
}

func (c *Controller) releaseWakeLock() {
	if !c.wakeHeld || c.deps.WakeLock == nil {
		return
	}
	c.wakeHeld = false
	if err := c.deps.WakeLock.Release(); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldEvent, "player.wakelock_release_failed").Msg("could not release wake lock")
	}
}
