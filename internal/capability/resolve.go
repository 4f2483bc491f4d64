// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capability resolves the requested decode and render flags against
// what the host can actually do.
package capability

import "fmt"

// Flags are the decode and render switches of a session.
type Flags struct {
	UseHardwareDecode      bool
	UseBufferedPlayback    bool
	ForceNoOffscreenRender bool
	UseOffscreenRender     bool
}

// Capabilities is a snapshot of host support.
type Capabilities struct {
	HardwareDecode   bool
	BufferedPlayback bool
	OffscreenRender  bool
}

// Adjustment records one flag changed by Resolve.
type Adjustment struct {
	Flag   string
	From   bool
	To     bool
	Reason string
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s: %t -> %t (%s)", a.Flag, a.From, a.To, a.Reason)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Flags       Flags
	Adjustments []Adjustment
}

// Resolve downgrades desired to what caps allow. Buffered playback wins over
// hardware decode and always renders on screen. Resolve has no side effects.
func Resolve(desired Flags, caps Capabilities) Resolution {
	r := Resolution{Flags: desired}
	f := &r.Flags

	adjust := func(name string, dst *bool, to bool, reason string) {
		if *dst == to {
			return
		}
		r.Adjustments = append(r.Adjustments, Adjustment{Flag: name, From: *dst, To: to, Reason: reason})
		*dst = to
	}

	if f.UseHardwareDecode && !caps.HardwareDecode {
		adjust("useHardwareDecode", &f.UseHardwareDecode, false, "hardware decode unavailable")
	}
	if f.UseBufferedPlayback && !caps.BufferedPlayback {
		adjust("useBufferedPlayback", &f.UseBufferedPlayback, false, "buffered playback unavailable")
	}

	if f.UseBufferedPlayback {
		adjust("useHardwareDecode", &f.UseHardwareDecode, false, "buffered playback selected")
		adjust("forceNoOffscreenRender", &f.ForceNoOffscreenRender, true, "buffered playback selected")
		return r
	}

	if !f.ForceNoOffscreenRender {
		if !caps.OffscreenRender {
			adjust("forceNoOffscreenRender", &f.ForceNoOffscreenRender, true, "offscreen render unavailable")
			adjust("useOffscreenRender", &f.UseOffscreenRender, false, "offscreen render unavailable")
		} else {
			adjust("useOffscreenRender", &f.UseOffscreenRender, true, "offscreen render available")
		}
	}
	return r
}
