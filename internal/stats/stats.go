// Package stats folds render ticks into one-second playback summaries.
package stats

import (
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/dustin/go-humanize"
)

// Window is the aggregation period.
const Window = time.Second

// Level buckets the frame rate of a window.
type Level int

const (
	LevelBad Level = iota
	LevelFair
	LevelGood
)

func (l Level) String() string {
	switch l {
	case LevelGood:
		return "good"
	case LevelFair:
		return "fair"
	default:
		return "bad"
	}
}

// FPSLevel maps a frame rate to a Level.
func FPSLevel(fps int) Level {
	switch {
	case fps >= 24:
		return LevelGood
	case fps >= 15:
		return LevelFair
	default:
		return LevelBad
	}
}

// Snapshot is the summary of one completed window.
type Snapshot struct {
	BufferedMs   int    `json:"buf"`
	FPS          int    `json:"fps"`
	AudioBitrate string `json:"abps"`
	VideoBitrate string `json:"vbps"`
	LastPts      string `json:"ts"`
}

// Aggregator counts ticks and payload bytes per window. It is safe for
// concurrent use.
type Aggregator struct {
	clock clock.Clock

	mu          sync.Mutex
	windowStart time.Time
	started     bool
	fps         int
	audioBytes  int
	videoBytes  int
	last        Snapshot
}

// New returns an aggregator reading time from c.
func New(c clock.Clock) *Aggregator {
	return &Aggregator{clock: c}
}

// Add counts tick. When the current window is at least one second old,
// tick closes it instead: Add returns the window's summary and starts an
// empty window at the current time.
func (a *Aggregator) Add(tick media.Tick) (Snapshot, bool) {
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		a.started = true
		a.windowStart = now
	}

	elapsed := now.Sub(a.windowStart)
	if elapsed < Window {
		a.fps++
		return Snapshot{}, false
	}

	snap := Snapshot{
		BufferedMs:   tick.BufferedMs,
		FPS:          a.fps,
		AudioBitrate: formatBitrate(a.audioBytes, elapsed),
		VideoBitrate: formatBitrate(a.videoBytes, elapsed),
		LastPts:      strconv.FormatInt(tick.PTS.Milliseconds(), 10),
	}
	a.last = snap

	a.windowStart = now
	a.fps = 0
	a.audioBytes = 0
	a.videoBytes = 0
	return snap, true
}

// AddBytes accounts demultiplexed payload bytes to the current window.
func (a *Aggregator) AddBytes(kind media.Kind, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch kind {
	case media.KindAudio:
		a.audioBytes += n
	case media.KindVideo:
		a.videoBytes += n
	}
}

// Last returns the most recently completed window.
func (a *Aggregator) Last() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Pending returns the tick count of the open window.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fps
}

// Reset zeroes all counters and clears the window clock.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = false
	a.windowStart = time.Time{}
	a.fps = 0
	a.audioBytes = 0
	a.videoBytes = 0
	a.last = Snapshot{}
}

func formatBitrate(bytes int, over time.Duration) string {
	if bytes == 0 || over <= 0 {
		return ""
	}
	bps := float64(bytes*8) / over.Seconds()
	return humanize.SIWithDigits(bps, 1, "bps")
}
