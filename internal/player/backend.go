// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "github.com/ManuGH/liveplay/internal/capability"

// BackendKind names a decode backend variant.
type BackendKind int

const (
	// BackendWorker decodes in software on a goroutine pipeline.
	BackendWorker BackendKind = iota
	// BackendHardware decodes video through a hardware-accelerated process.
	BackendHardware
	// BackendBuffered plays video out of a jitter buffer once the surface starts.
	BackendBuffered
)

func (k BackendKind) String() string {
	switch k {
	case BackendWorker:
		return "worker"
	case BackendHardware:
		return "hardware"
	case BackendBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// Selection is the backend layout of a session. The worker backend always
// exists and takes audio; Primary takes video.
type Selection struct {
	Primary BackendKind
}

// SelectBackends picks the primary backend from resolved flags. Buffered
// playback wins over hardware decode.
func SelectBackends(f capability.Flags) Selection {
	switch {
	case f.UseBufferedPlayback:
		return Selection{Primary: BackendBuffered}
	case f.UseHardwareDecode:
		return Selection{Primary: BackendHardware}
	default:
		return Selection{Primary: BackendWorker}
	}
}

// Gate is the backend whose readiness Init waits for.
func (s Selection) Gate() BackendKind {
	if s.Primary == BackendBuffered {
		return BackendBuffered
	}
	return BackendWorker
}

// Kinds lists the backends to construct, worker first.
func (s Selection) Kinds() []BackendKind {
	if s.Primary == BackendWorker {
		return []BackendKind{BackendWorker}
	}
	return []BackendKind{BackendWorker, s.Primary}
}
