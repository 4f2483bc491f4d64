// Package media holds the value types exchanged between transport,
// demultiplexer, decode backends and the playback controller.
package media

import (
	"time"

	"github.com/ManuGH/liveplay/internal/bus"
)

// Kind distinguishes audio and video elementary streams.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Frame is one demultiplexed access unit.
type Frame struct {
	Kind     Kind
	Codec    string
	PTS      time.Duration
	DTS      time.Duration
	Keyframe bool
	Data     []byte
}

// Tick is reported by a decode backend once per rendered video frame.
type Tick struct {
	PTS        time.Duration
	BufferedMs int
}

// FrameSink receives demultiplexed frames.
type FrameSink interface {
	WriteFrame(f Frame)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(f Frame)

// WriteFrame calls fn(f).
func (fn FrameSinkFunc) WriteFrame(f Frame) { fn(f) }

// Stream lifecycle topics published by transports. Each fires at most once
// per FetchStream.
var (
	StreamSuccess = bus.NewTopic[string]("streamSuccess")
	FetchError    = bus.NewTopic[error]("fetchError")
	SocketError   = bus.NewTopic[error]("websocketError")
)

// PTSFromTicks converts a 90 kHz MPEG timestamp to a duration.
func PTSFromTicks(ticks int64) time.Duration {
	return time.Duration(ticks) * time.Second / 90000
}
