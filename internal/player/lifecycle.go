// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/ManuGH/liveplay/internal/telemetry"
	"github.com/ManuGH/liveplay/internal/watchdog"
	"go.opentelemetry.io/otel/trace"
)

// Init creates the missing session resources and waits until the gating
// decode backend is ready. Concurrent calls share one initialization.
func (c *Controller) Init(ctx context.Context) (err error) {
	opts := c.Options()
	ctx, span := c.tracer.Start(ctx, "player.init", trace.WithAttributes(
		telemetry.BackendAttributes(c.selection.Primary.String(), c.selection.Gate().String(), opts.HWDevice, opts.Timeout)...,
	))
	defer func() { telemetry.EndSpan(span, err) }()

	ch := c.initSF.DoChan("init", func() (any, error) {
		return nil, c.initSession()
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) initSession() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.initializing++
	defer func() {
		c.mu.Lock()
		c.initializing--
		c.mu.Unlock()
	}()

	if err := c.ensureSessionLocked(); err != nil {
		c.unlockAndDispatch()
		c.logger.Error().Err(err).Str(log.FieldEvent, "player.init_failed").Msg("session init failed")
		return err
	}
	gate := c.worker
	if c.selection.Gate() == BackendBuffered {
		gate = c.primary
	}
	done := c.sessionDone
	c.unlockAndDispatch()

	select {
	case <-gate.Ready():
		return nil
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return ErrDestroyed
		}
		return ErrClosed
	}
}

// ensureSessionLocked creates transport, demuxer and backends if absent.
// A failure leaves what was created in place for the next Close.
func (c *Controller) ensureSessionLocked() error {
	if c.sessionDone == nil {
		c.gen++
		c.sessionDone = make(chan struct{})
	}
	gen := c.gen

	if c.transport == nil {
		t, err := c.deps.NewTransport(&streamTee{c: c, gen: gen})
		if err != nil {
			return fmt.Errorf("create transport: %w", err)
		}
		c.transport = t
	}
	if c.demux == nil {
		d, err := c.deps.NewDemuxer(media.FrameSinkFunc(func(f media.Frame) {
			c.routeFrame(gen, f)
		}), c.stats.AddBytes)
		if err != nil {
			return fmt.Errorf("create demuxer: %w", err)
		}
		c.demux = d
	}
	for _, kind := range c.selection.Kinds() {
		slot := &c.primary
		if kind == BackendWorker {
			slot = &c.worker
		}
		if *slot != nil {
			continue
		}
		b, err := c.deps.NewBackend(kind, BackendEnv{
			Options: c.opts,
			Flags:   c.flags,
			Clock:   c.clock,
			Video:   c.video,
			Audio:   c.audio,
			OnTick:  func(t media.Tick) { c.onBackendTick(gen, t) },
		})
		if err != nil {
			return fmt.Errorf("create %s backend: %w", kind, err)
		}
		*slot = b
	}
	if c.selection.Primary == BackendWorker {
		c.primary = c.worker
	}
	return nil
}

// Play starts the stream at rawURL, or at the configured URL when rawURL is
// empty. It returns once the transport reports success or failure, when
// the session is closed underneath it, or when ctx is done.
func (c *Controller) Play(ctx context.Context, rawURL string) (err error) {
	start := c.clock.Now()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if rawURL == "" {
		rawURL = c.opts.URL
	}
	if rawURL == "" {
		c.mu.Unlock()
		metrics.RecordPlayAttempt("no_url")
		return ErrNoURL
	}
	c.setLoadingLocked(true)
	c.setPlayingLocked(false)
	c.heart.Disarm()
	c.opts.URL = rawURL
	c.unlockAndDispatch()

	masked := log.MaskURL(rawURL)
	ctx, span := c.tracer.Start(ctx, "player.play", trace.WithAttributes(
		telemetry.SessionAttributes(c.sessionID, masked, scheme(rawURL))...,
	))
	defer func() {
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes(playOutcome(err))...)
		}
		telemetry.EndSpan(span, err)
		metrics.RecordPlayAttempt(playOutcome(err))
	}()

	c.logger.Info().
		Str(log.FieldEvent, "player.play_start").
		Str(log.FieldURL, masked).
		Msg("starting playback")

	if err := c.Init(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	tr := c.transport
	if tr == nil {
		c.mu.Unlock()
		return ErrClosed
	}
	done := c.sessionDone

	res := newResult()
	subs := []bus.Subscription{
		bus.Once(tr.Events(), media.StreamSuccess, func(string) { res.settle(nil) }),
		bus.Once(tr.Events(), media.FetchError, func(e error) {
			res.settle(&TransportError{Kind: TransportFetch, Err: e})
		}),
		bus.Once(tr.Events(), media.SocketError, func(e error) {
			res.settle(&TransportError{Kind: TransportSocket, Err: e})
		}),
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	if ferr := tr.FetchStream(rawURL); ferr != nil {
		res.settle(&TransportError{Kind: TransportFetch, Err: ferr})
	}
	if c.selection.Primary == BackendBuffered && c.video != nil {
		c.video.Play()
	}
	c.loadWD.Arm(c.opts.TimeoutDuration(), c.onLoadingTimeout)
	c.unlockAndDispatch()

	select {
	case <-res.Done():
		err = res.Err()
	case <-done:
		select {
		case <-res.Done():
			err = res.Err()
		default:
			err = ErrClosed
		}
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			metrics.IncTransportError(string(te.Kind))
		}
		c.logger.Warn().Err(err).Str(log.FieldEvent, "player.play_failed").Msg("stream did not start")
		return err
	}
	metrics.ObservePlayStartup(c.clock.Now().Sub(start))
	c.logger.Info().Str(log.FieldEvent, "player.stream_started").Msg("stream started")
	return nil
}

// Close tears the session down and clears the video surface.
func (c *Controller) Close(_ context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.mu.Unlock()

	c.closeSession()

	c.mu.Lock()
	if c.video != nil {
		c.video.ClearView()
	}
	c.mu.Unlock()
	return nil
}

// Pause stops the session. With clearView it behaves like Close; otherwise
// the last frame stays on the surface.
func (c *Controller) Pause(ctx context.Context, clearView bool) error {
	if clearView {
		return c.Close(ctx)
	}
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.mu.Unlock()
	c.closeSession()
	return nil
}

// Destroy releases everything the controller owns, publishes EventDestroy
// and detaches all listeners. Later calls are no-ops.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	res := c.detachSessionLocked()
	c.heart.Disarm()
	c.loadWD.Disarm()
	c.stats.Reset()
	if err := c.stopRecordingLocked(); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "player.record_save_failed").Msg("recording lost on destroy")
	}
	video, audio, rec, ctl := c.video, c.audio, c.recorder, c.control
	c.video, c.audio, c.recorder, c.control = nil, nil, nil, nil
	c.loading, c.playing, c.hasLoaded = false, false, false
	metrics.SetSessionState(false, false)
	close(c.done)
	c.mu.Unlock()

	c.watchWG.Wait()
	c.teardown(res)
	if video != nil {
		c.destroyResource("video", video.Destroy)
	}
	if audio != nil {
		c.destroyResource("audio", audio.Destroy)
	}
	if rec != nil {
		c.destroyResource("recorder", rec.Destroy)
	}
	if ctl != nil {
		c.destroyResource("control", ctl.Destroy)
	}
	c.releaseWakeLock()

	c.mu.Lock()
	emit(c, EventDestroy, struct{}{})
	c.outbox = append(c.outbox, c.events.Clear)
	c.logger.Info().Str(log.FieldEvent, "player.destroyed").Msg("player destroyed")
	c.unlockAndDispatch()
}

// sessionResources are detached handles awaiting teardown.
type sessionResources struct {
	transport Transport
	demux     Demuxer
	worker    DecodeBackend
	primary   DecodeBackend
}

// closeSession is the shared stop path of Close and Pause.
func (c *Controller) closeSession() {
	c.mu.Lock()
	res := c.closeLocked()
	c.mu.Unlock()
	c.teardown(res)
	c.mu.Lock()
	c.unlockAndDispatch()
}

// closeLocked detaches the session and resets the flags. An active
// recording is stopped and saved.
func (c *Controller) closeLocked() sessionResources {
	res := c.detachSessionLocked()
	c.heart.Disarm()
	c.loadWD.Disarm()
	c.stats.Reset()
	c.setPlayingLocked(false)
	c.setLoadingLocked(false)
	if err := c.stopRecordingLocked(); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "player.record_save_failed").Msg("could not save recording on close")
	}
	if c.audio != nil {
		c.audio.Pause()
	}
	return res
}

func (c *Controller) detachSessionLocked() sessionResources {
	res := sessionResources{
		transport: c.transport,
		demux:     c.demux,
		worker:    c.worker,
		primary:   c.primary,
	}
	c.transport, c.demux, c.worker, c.primary = nil, nil, nil, nil
	if c.sessionDone != nil {
		close(c.sessionDone)
		c.sessionDone = nil
		c.gen++
	}
	return res
}

// teardown destroys detached resources: transport, then demuxer, then the
// decode backends.
func (c *Controller) teardown(res sessionResources) {
	if res.transport != nil {
		c.destroyResource("transport", res.transport.Destroy)
	}
	if res.demux != nil {
		c.destroyResource("demux", res.demux.Destroy)
	}
	if res.worker != nil {
		c.destroyResource(res.worker.Kind().String(), res.worker.Destroy)
	}
	if res.primary != nil && res.primary != res.worker {
		c.destroyResource(res.primary.Kind().String(), res.primary.Destroy)
	}
}

func (c *Controller) destroyResource(name string, destroy func() error) {
	if err := destroy(); err != nil {
		metrics.IncTeardownError(name)
		c.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "player.teardown_error").
			Str("resource", name).
			Msg("resource destroy failed")
	}
}

func (c *Controller) onHeartTimeout()   { c.timeout(TimeoutHeart) }
func (c *Controller) onLoadingTimeout() { c.timeout(TimeoutLoading) }

// timeout runs on the watchdog goroutine. The checks under mu drop a fire
// that raced with a re-arm or with Close.
func (c *Controller) timeout(reason TimeoutReason) {
	c.mu.Lock()
	d := c.heart
	if reason == TimeoutLoading {
		d = c.loadWD
	}
	if c.destroyed || d.State() != watchdog.StateFired || (reason == TimeoutLoading && !c.loading) {
		c.mu.Unlock()
		return
	}
	res := c.closeLocked()
	c.mu.Unlock()

	c.teardown(res)

	c.mu.Lock()
	emit(c, EventTimeout, reason)
	metrics.IncTimeout(string(reason))
	c.logger.Warn().
		Str(log.FieldEvent, "watchdog.timeout").
		Str(log.FieldReason, string(reason)).
		Int("timeout_s", c.opts.Timeout).
		Msg("playback stalled, session paused")
	c.unlockAndDispatch()
}

func playOutcome(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoURL):
		return "no_url"
	case errors.As(err, &te):
		return string(te.Kind)
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrDestroyed):
		return "destroyed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "init_error"
	}
}

func scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme
}
