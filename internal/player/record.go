// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"fmt"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/metrics"
)

// Recording reports whether the recorder is capturing.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordingLocked()
}

// SetRecording starts or stops recording. It is a no-op unless playing.
func (c *Controller) SetRecording(v bool) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	return c.setRecordingLocked(v)
}

// StartRecord names the next recording and starts it. It is a no-op while
// already recording or when not playing.
func (c *Controller) StartRecord(name string) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	if c.recorder == nil || c.recorder.Recording() {
		return nil
	}
	c.recordName = name
	return c.setRecordingLocked(true)
}

// StopRecordAndSave finalizes an active recording. It is a no-op when not
// recording.
func (c *Controller) StopRecordAndSave() error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	return c.stopRecordingLocked()
}

func (c *Controller) recordingLocked() bool {
	return c.recorder != nil && c.recorder.Recording()
}

func (c *Controller) setRecordingLocked(v bool) error {
	if c.recorder == nil || !c.playing || v == c.recorder.Recording() {
		return nil
	}
	if !v {
		return c.stopRecordingLocked()
	}
	if err := c.recorder.StartRecord(c.recordName); err != nil {
		return fmt.Errorf("start record: %w", err)
	}
	emit(c, EventRecording, true)
	c.logger.Info().
		Str(log.FieldEvent, "player.record_start").
		Str("name", c.recordName).
		Msg("recording started")
	return nil
}

func (c *Controller) stopRecordingLocked() error {
	if !c.recordingLocked() {
		return nil
	}
	path, err := c.recorder.StopRecordAndSave()
	emit(c, EventRecording, false)
	if err != nil {
		metrics.IncRecordingSaved("error")
		return fmt.Errorf("save recording: %w", err)
	}
	metrics.IncRecordingSaved("success")
	c.logger.Info().
		Str(log.FieldEvent, "player.record_saved").
		Str(log.FieldPath, path).
		Msg("recording saved")
	return nil
}
