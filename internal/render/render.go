// Package render provides headless presentation targets: a video surface and
// an audio sink that count what they are given. The CLI plays through them.
package render

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
)

// Surface is a headless video surface.
type Surface struct {
	logger zerolog.Logger

	mu        sync.Mutex
	started   bool
	destroyed bool
	frames    uint64
	keyframes uint64
	lastPTS   time.Duration
	lastCodec string
}

// NewSurface returns a stopped surface.
func NewSurface() *Surface {
	return &Surface{logger: log.WithComponent("render")}
}

// Play starts presentation.
func (s *Surface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.started = true
}

// Started reports whether Play was called since the last ClearView.
func (s *Surface) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Render presents one frame.
func (s *Surface) Render(f media.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.frames++
	if f.Keyframe {
		s.keyframes++
	}
	s.lastPTS = f.PTS
	if f.Codec != "" && f.Codec != s.lastCodec {
		s.lastCodec = f.Codec
		s.logger.Debug().Str(log.FieldCodec, f.Codec).Msg("video codec")
	}
}

// ClearView blanks the surface and stops presentation.
func (s *Surface) ClearView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.lastPTS = 0
}

// Destroy releases the surface. Later calls are no-ops.
func (s *Surface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.started = false
	return nil
}

// SurfaceStats is a snapshot of a surface.
type SurfaceStats struct {
	Frames    uint64        `json:"frames"`
	Keyframes uint64        `json:"keyframes"`
	LastPTS   time.Duration `json:"lastPts"`
	Codec     string        `json:"codec"`
	Started   bool          `json:"started"`
}

// Stats returns the current counters.
func (s *Surface) Stats() SurfaceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SurfaceStats{
		Frames:    s.frames,
		Keyframes: s.keyframes,
		LastPTS:   s.lastPTS,
		Codec:     s.lastCodec,
		Started:   s.started,
	}
}

// Sink is a headless audio sink.
type Sink struct {
	mu        sync.Mutex
	volume    float64
	muted     bool
	paused    bool
	destroyed bool
	frames    uint64
	bytes     uint64
}

// NewSink returns a sink at full volume.
func NewSink() *Sink {
	return &Sink{volume: 1}
}

func (s *Sink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume clamps v to [0, 1].
func (s *Sink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = min(max(v, 0), 1)
}

func (s *Sink) Mute(flag bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = flag
}

func (s *Sink) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Pause holds output until the next Write.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Write plays one audio frame. Muted frames are counted but not output.
func (s *Sink) Write(f media.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.paused = false
	s.frames++
	if !s.muted {
		s.bytes += uint64(len(f.Data))
	}
}

// Destroy releases the sink.
func (s *Sink) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	return nil
}

// SinkStats is a snapshot of a sink.
type SinkStats struct {
	Frames uint64  `json:"frames"`
	Bytes  uint64  `json:"bytes"`
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
	Paused bool    `json:"paused"`
}

// Stats returns the current counters.
func (s *Sink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SinkStats{Frames: s.frames, Bytes: s.bytes, Volume: s.volume, Muted: s.muted, Paused: s.paused}
}
