package capability

import (
	"os"
	"os/exec"
	"runtime"
	"sync/atomic"

	"github.com/ManuGH/liveplay/internal/log"
)

// Probe answers the host capability questions.
type Probe interface {
	HardwareDecode() bool
	BufferedPlayback() bool
	OffscreenRender() bool
	FullscreenActive() bool
}

// Snapshot evaluates p once.
func Snapshot(p Probe) Capabilities {
	return Capabilities{
		HardwareDecode:   p.HardwareDecode(),
		BufferedPlayback: p.BufferedPlayback(),
		OffscreenRender:  p.OffscreenRender(),
	}
}

// HostProbe inspects the local machine.
//
// Hardware decode needs the VAAPI render node and an ffmpeg binary on PATH.
// Only the device node is checked; a broken driver surfaces later as a
// backend error.
type HostProbe struct {
	Device    string
	FFmpegBin string

	fullscreen atomic.Bool
}

// NewHostProbe returns a probe for the given render node and ffmpeg binary.
func NewHostProbe(device, ffmpegBin string) *HostProbe {
	return &HostProbe{Device: device, FFmpegBin: ffmpegBin}
}

// HardwareDecode checks the render node and the ffmpeg binary.
func (p *HostProbe) HardwareDecode() bool {
	logger := log.WithComponent("capability")
	if _, err := os.Stat(p.Device); err != nil {
		logger.Debug().Str(log.FieldPath, p.Device).Err(err).Msg("vaapi device not available")
		return false
	}
	if _, err := exec.LookPath(p.FFmpegBin); err != nil {
		logger.Debug().Str("bin", p.FFmpegBin).Err(err).Msg("ffmpeg not found")
		return false
	}
	return true
}

// BufferedPlayback is always available: the jitter buffer is in-process.
func (p *HostProbe) BufferedPlayback() bool { return true }

// OffscreenRender needs a second OS thread for the render goroutine.
func (p *HostProbe) OffscreenRender() bool { return runtime.GOMAXPROCS(0) > 1 }

// FullscreenActive reports the last value set by SetFullscreen.
func (p *HostProbe) FullscreenActive() bool { return p.fullscreen.Load() }

// SetFullscreen records the fullscreen state of the host window.
func (p *HostProbe) SetFullscreen(v bool) { p.fullscreen.Store(v) }

// Static is a fixed Probe, used by tests and by the probe command's overrides.
type Static struct {
	Caps       Capabilities
	Fullscreen bool
}

func (s Static) HardwareDecode() bool   { return s.Caps.HardwareDecode }
func (s Static) BufferedPlayback() bool { return s.Caps.BufferedPlayback }
func (s Static) OffscreenRender() bool  { return s.Caps.OffscreenRender }
func (s Static) FullscreenActive() bool { return s.Fullscreen }
