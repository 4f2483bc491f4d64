// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/stats"
	"github.com/ManuGH/liveplay/internal/telemetry"
	"github.com/ManuGH/liveplay/internal/version"
)

const statsLogInterval = 10 * time.Second

type playFlags struct {
	url         string
	timeout     int
	hardware    bool
	buffered    bool
	videoBuffer int
	unmute      bool
	keepAwake   bool
	controlAddr string
	recordDir   string
	record      string
	retries     int
	retryDelay  time.Duration
	duration    time.Duration
}

func newPlayCmd(rf *rootFlags) *cobra.Command {
	pf := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play [url]",
		Short: "Play a live stream until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				pf.url = args[0]
				_ = cmd.Flags().Set("url", args[0])
			}
			opts, loader, err := loadOptions(rf, pf.patch(cmd))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") {
				log.Configure(log.Config{
					Level:   opts.EffectiveLogLevel(),
					Output:  cmd.ErrOrStderr(),
					Service: "liveplay",
					Version: version.Version,
				})
			}
			return runPlay(cmd.Context(), opts, loader, pf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&pf.url, "url", "", "stream URL (http, https, ws or wss)")
	f.IntVar(&pf.timeout, "timeout", 0, "watchdog timeout in seconds")
	f.BoolVar(&pf.hardware, "hw", false, "prefer hardware decode")
	f.BoolVar(&pf.buffered, "buffered", false, "prefer buffered playback")
	f.IntVar(&pf.videoBuffer, "video-buffer", 0, "buffered playback target depth in milliseconds")
	f.BoolVar(&pf.unmute, "unmute", false, "start with audio enabled")
	f.BoolVar(&pf.keepAwake, "keep-awake", false, "inhibit idle and sleep while playing")
	f.StringVar(&pf.controlAddr, "control-addr", "", "serve the HTTP control surface on this address")
	f.StringVar(&pf.recordDir, "record-dir", "", "directory for recordings")
	f.StringVar(&pf.record, "record", "", "start recording to this file name once playing")
	f.IntVar(&pf.retries, "retries", 3, "replay attempts after a failure before giving up")
	f.DurationVar(&pf.retryDelay, "retry-delay", 2*time.Second, "minimum spacing between play attempts")
	f.DurationVar(&pf.duration, "duration", 0, "stop after this long (0 plays until interrupted)")
	return cmd
}

// patch turns the flags the user actually set into an options patch.
func (pf *playFlags) patch(cmd *cobra.Command) config.Patch {
	var p config.Patch
	f := cmd.Flags()
	if f.Changed("url") {
		p.URL = config.Ptr(pf.url)
	}
	if f.Changed("timeout") {
		p.Timeout = config.Ptr(pf.timeout)
	}
	if f.Changed("hw") {
		p.UseHardwareDecode = config.Ptr(pf.hardware)
	}
	if f.Changed("buffered") {
		p.UseBufferedPlayback = config.Ptr(pf.buffered)
	}
	if f.Changed("video-buffer") {
		p.VideoBuffer = config.Ptr(pf.videoBuffer)
	}
	if f.Changed("unmute") {
		p.IsNotMute = config.Ptr(pf.unmute)
	}
	if f.Changed("keep-awake") {
		p.KeepScreenOn = config.Ptr(pf.keepAwake)
	}
	if f.Changed("record-dir") {
		p.RecordDir = config.Ptr(pf.recordDir)
	}
	if f.Changed("control-addr") {
		p.ControlAddr = config.Ptr(pf.controlAddr)
		p.OperateBtns = &config.OperateButtons{Fullscreen: true, Play: true, Audio: true, Record: true}
	}
	return p
}

func runPlay(ctx context.Context, opts config.Options, loader *config.Loader, pf *playFlags) error {
	logger := log.WithComponent("liveplay")

	tp, err := telemetry.NewProvider(ctx, tracingConfig())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if pf.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pf.duration)
		defer cancel()
	}

	holder := config.NewHolder(opts, loader)
	updates := make(chan config.Patch, 4)
	holder.RegisterListener(updates)
	s.ctrl.Watch(updates)

	subs := logEvents(s.ctrl, logger)
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Returns once the watcher goroutine is running; it stops with gctx.
		return holder.StartWatcher(gctx)
	})
	g.Go(func() error {
		return playLoop(gctx, s.ctrl, pf, logger)
	})
	err = g.Wait()
	holder.Stop()

	logger.Info().
		Str(log.FieldEvent, "liveplay.stopped").
		Interface("video", s.surface.Stats()).
		Interface("audio", s.sink.Stats()).
		Msg("playback stopped")
	return err
}

// playLoop plays until ctx is done, replaying after a watchdog timeout or a
// transport failure. Attempts are spaced by retryDelay; more than retries
// consecutive failures end the loop with the last error.
func playLoop(ctx context.Context, c *player.Controller, pf *playFlags, logger zerolog.Logger) error {
	timeouts := make(chan player.TimeoutReason, 1)
	sub := bus.Subscribe(c.Events(), player.EventTimeout, func(r player.TimeoutReason) {
		select {
		case timeouts <- r:
		default:
		}
	})
	defer sub.Close()

	limiter := rate.NewLimiter(rate.Every(pf.retryDelay), 1)
	failures := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		err := c.Play(ctx, "")
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			failures = 0
			if pf.record != "" && !c.Recording() {
				if rerr := c.StartRecord(pf.record); rerr != nil {
					logger.Error().Err(rerr).Str(log.FieldEvent, "liveplay.record_failed").Msg("could not start recording")
				}
			}
		case !retryable(err):
			return err
		default:
			failures++
			if failures > pf.retries {
				return fmt.Errorf("giving up after %d attempts: %w", failures, err)
			}
			logger.Warn().Err(err).Int("attempt", failures).Str(log.FieldEvent, "liveplay.retry").Msg("play failed, retrying")
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case reason := <-timeouts:
			logger.Warn().Str(log.FieldReason, string(reason)).Str(log.FieldEvent, "liveplay.replay").Msg("stream stalled, replaying")
		}
	}
}

func retryable(err error) bool {
	var te *player.TransportError
	switch {
	case errors.As(err, &te):
		return true
	case errors.Is(err, player.ErrClosed):
		return true
	default:
		return false
	}
}

// logEvents subscribes loggers to the controller notifications. Stats are
// logged at most every statsLogInterval.
func logEvents(c *player.Controller, logger zerolog.Logger) []bus.Subscription {
	statsEvery := rate.Sometimes{Interval: statsLogInterval}
	ev := c.Events()
	return []bus.Subscription{
		bus.Subscribe(ev, player.EventStart, func(struct{}) {
			logger.Info().Str(log.FieldEvent, "liveplay.first_frame").Msg("first frame rendered")
		}),
		bus.Subscribe(ev, player.EventStats, func(s stats.Snapshot) {
			statsEvery.Do(func() {
				logger.Info().
					Str(log.FieldEvent, "liveplay.stats").
					Int(log.FieldFPS, s.FPS).
					Int(log.FieldBuffered, s.BufferedMs).
					Str("vbps", s.VideoBitrate).
					Str("abps", s.AudioBitrate).
					Str(log.FieldPTS, s.LastPts).
					Msg("playback stats")
			})
		}),
		bus.Subscribe(ev, player.EventPerformance, func(l stats.Level) {
			if l == stats.LevelBad {
				logger.Warn().Str(log.FieldEvent, "liveplay.performance").Str("level", l.String()).Msg("frame rate is low")
			}
		}),
		bus.Subscribe(ev, player.EventRecording, func(on bool) {
			logger.Info().Str(log.FieldEvent, "liveplay.recording").Bool("recording", on).Msg("recording changed")
		}),
	}
}

// tracingConfig reads the tracing environment.
func tracingConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        config.ParseBool(config.EnvPrefix+"TRACING_ENABLED", false),
		ServiceName:    "liveplay",
		ServiceVersion: version.Version,
		Environment:    config.ParseString(config.EnvPrefix+"TRACING_ENVIRONMENT", "production"),
		ExporterType:   config.ParseString(config.EnvPrefix+"TRACING_EXPORTER", "grpc"),
		Endpoint:       config.ParseString(config.EnvPrefix+"TRACING_ENDPOINT", "localhost:4317"),
		SamplingRate:   config.ParseFloat(config.EnvPrefix+"TRACING_SAMPLING_RATE", 1.0),
	}
}
