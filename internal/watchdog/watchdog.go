// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog provides re-armable single-shot deadlines used for stall
// and start-up detection.
package watchdog

import (
	"sync"
	"time"

	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/metrics"
)

// State of a deadline.
type State int

const (
	StateDisarmed State = iota
	StateArmed
	StateFired
)

func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "disarmed"
	case StateArmed:
		return "armed"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Deadline is a single-shot timer that can be re-armed.
// At most one instance is pending at any time: Arm cancels the previous one
// and a cancelled instance never runs its callback, even if its timer already
// expired concurrently.
type Deadline struct {
	name  string
	clock clock.Clock

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
	state State
}

// New creates a disarmed deadline. name labels logs and metrics.
func New(name string, c clock.Clock) *Deadline {
	if c == nil {
		c = clock.Real()
	}
	return &Deadline{name: name, clock: c}
}

// Name returns the deadline's label.
func (d *Deadline) Name() string { return d.name }

// Arm (re)starts the deadline. onFire runs on the timer goroutine once d
// elapses without a Disarm or another Arm in between.
func (d *Deadline) Arm(after time.Duration, onFire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.state = StateArmed
	d.timer = d.clock.AfterFunc(after, func() { d.fire(gen, onFire) })
}

// Disarm cancels a pending deadline and clears a fired state. It is safe to
// call when disarmed. It reports whether an armed instance was cancelled.
func (d *Deadline) Disarm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		d.state = StateDisarmed
		return false
	}
	d.stopLocked()
	d.gen++
	d.state = StateDisarmed
	return true
}

// Armed reports whether an instance is pending.
func (d *Deadline) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// State returns the current deadline state.
func (d *Deadline) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Deadline) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Deadline) fire(gen uint64, onFire func()) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		// superseded by Arm or Disarm
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.state = StateFired
	d.mu.Unlock()

	metrics.IncWatchdogFired(d.name)
	log.L().Debug().
		Str(log.FieldEvent, "watchdog.fired").
		Str("watchdog", d.name).
		Msg("deadline expired")

	if onFire != nil {
		onFire()
	}
}
