package player

import (
	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/stats"
)

// TimeoutReason is the payload of EventTimeout.
type TimeoutReason string

const (
	TimeoutHeart   TimeoutReason = "heart timeout"
	TimeoutLoading TimeoutReason = "loading timeout"
)

// Session notifications.
var (
	EventLoading       = bus.NewTopic[bool]("loading")
	EventPlaying       = bus.NewTopic[bool]("playing")
	EventPlay          = bus.NewTopic[struct{}]("play")
	EventPause         = bus.NewTopic[struct{}]("pause")
	EventStart         = bus.NewTopic[struct{}]("start")
	EventTimeout       = bus.NewTopic[TimeoutReason]("timeout")
	EventStats         = bus.NewTopic[stats.Snapshot]("stats")
	EventPerformance   = bus.NewTopic[stats.Level]("performance")
	EventFullscreen    = bus.NewTopic[bool]("fullscreen")
	EventWebFullscreen = bus.NewTopic[bool]("webFullscreen")
	EventVolumeChange  = bus.NewTopic[float64]("volumechange")
	EventRecording     = bus.NewTopic[bool]("recording")
	EventDestroy       = bus.NewTopic[struct{}]("destroy")
)
