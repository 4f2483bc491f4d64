// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/ManuGH/liveplay/internal/stats"
)

// HandleRender records a rendered frame: the first one ends loading, any
// one marks the session playing, and each re-arms the heartbeat watchdog.
func (c *Controller) HandleRender(tick media.Tick) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.destroyed {
		return
	}
	c.handleRenderLocked(tick)
}

// UpdateStats feeds tick to the stats window and notifies when a window
// closes.
func (c *Controller) UpdateStats(tick media.Tick) {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.destroyed {
		return
	}
	c.updateStatsLocked(tick)
}

func (c *Controller) handleRenderLocked(tick media.Tick) {
	if c.loading {
		emit(c, EventStart, struct{}{})
		c.setLoadingLocked(false)
		c.loadWD.Disarm()
		c.logger.Info().
			Str(log.FieldEvent, "player.first_frame").
			Dur(log.FieldPTS, tick.PTS).
			Msg("first frame rendered")
	}
	c.hasLoaded = true
	if !c.playing {
		c.setPlayingLocked(true)
	}
	c.heart.Arm(c.opts.TimeoutDuration(), c.onHeartTimeout)
	metrics.IncRenderTick(c.selection.Primary.String())
}

func (c *Controller) updateStatsLocked(tick media.Tick) {
	snap, ok := c.stats.Add(tick)
	if !ok {
		return
	}
	level := stats.FPSLevel(snap.FPS)
	emit(c, EventStats, snap)
	emit(c, EventPerformance, level)
	metrics.SetWindowStats(snap.FPS, snap.BufferedMs)
}

func (c *Controller) liveLocked(gen uint64) bool {
	return !c.destroyed && c.sessionDone != nil && gen == c.gen
}

// onBackendTick is the OnTick callback handed to backends of session gen.
// It runs on the backend goroutine, so its notifications are handed off.
func (c *Controller) onBackendTick(gen uint64, tick media.Tick) {
	c.mu.Lock()
	defer c.unlockAndHandOff()
	if !c.liveLocked(gen) {
		return
	}
	c.handleRenderLocked(tick)
	c.updateStatsLocked(tick)
}

// routeFrame sends video to the primary backend and audio to the worker.
func (c *Controller) routeFrame(gen uint64, f media.Frame) {
	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return
	}
	var dst DecodeBackend
	switch f.Kind {
	case media.KindAudio:
		if c.opts.HasAudio {
			dst = c.worker
		}
	default:
		dst = c.primary
	}
	c.mu.Unlock()

	if dst != nil {
		dst.WriteFrame(f)
	}
}

// streamTee forwards transport bytes to the demuxer and, while recording,
// to the recorder.
type streamTee struct {
	c   *Controller
	gen uint64
}

func (t *streamTee) Write(p []byte) (int, error) {
	c := t.c
	c.mu.Lock()
	if !c.liveLocked(t.gen) || c.demux == nil {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	d, rec := c.demux, c.recorder
	c.mu.Unlock()

	if _, err := d.Write(p); err != nil {
		return 0, err
	}
	if rec != nil && rec.Recording() {
		if _, err := rec.Write(p); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "player.record_write_failed").Msg("recording write failed")
		}
	}
	return len(p), nil
}
