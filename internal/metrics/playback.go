// Package metrics provides Prometheus metrics for the liveplay playback pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session ids or URLs in labels: cardinality stays bounded by enums.

var (
	// PlayAttemptsTotal counts Play calls by outcome (success, fetch_error,
	// socket_error, no_url, init_error, canceled).
	PlayAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_play_attempts_total",
		Help: "Total number of play attempts, by outcome.",
	}, []string{"outcome"})

	// PlayStartupLatency tracks the time from Play until the first rendered frame.
	PlayStartupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liveplay_play_startup_latency_seconds",
		Help:    "Time from play request to the first rendered frame.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	})

	// TimeoutsTotal counts watchdog-driven forced pauses by reason.
	TimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_timeouts_total",
		Help: "Total number of playback timeouts, by reason.",
	}, []string{"reason"})

	// WatchdogFiredTotal counts deadline expiries by watchdog name.
	WatchdogFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_watchdog_fired_total",
		Help: "Total number of watchdog deadline expiries, by watchdog.",
	}, []string{"watchdog"})

	// RenderTicksTotal counts rendered frames reported by decode backends.
	RenderTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_render_ticks_total",
		Help: "Total number of render ticks, by decode backend.",
	}, []string{"backend"})

	// BackendSelectedTotal counts primary decode backend selections.
	BackendSelectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_backend_selected_total",
		Help: "Total number of decode backend selections, by backend.",
	}, []string{"backend"})

	// TeardownErrorsTotal counts swallowed sub-resource destroy errors.
	TeardownErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_teardown_errors_total",
		Help: "Total number of sub-resource destroy errors swallowed during teardown, by resource.",
	}, []string{"resource"})

	// Playing is 1 while the session renders frames.
	Playing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveplay_playing",
		Help: "1 while the playback session is rendering frames, 0 otherwise.",
	})

	// Loading is 1 while the session waits for its first frame.
	Loading = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveplay_loading",
		Help: "1 while the playback session waits for the first frame, 0 otherwise.",
	})

	// FramesPerSecond is the fps of the last completed stats window.
	FramesPerSecond = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveplay_fps",
		Help: "Rendered frames per second over the last completed stats window.",
	})

	// BufferedMilliseconds is the decode buffer depth of the last stats window.
	BufferedMilliseconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveplay_buffered_milliseconds",
		Help: "Decode buffer depth reported by the last stats window.",
	})

	// TransportBytesTotal counts raw bytes received from transports.
	TransportBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_transport_bytes_total",
		Help: "Total raw stream bytes received, by transport scheme.",
	}, []string{"scheme"})

	// TransportErrorsTotal counts failed stream starts by transport error kind.
	TransportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_transport_errors_total",
		Help: "Total number of transport errors that failed a play attempt, by kind.",
	}, []string{"kind"})

	// FramesDroppedTotal counts frames a decode backend discarded because its
	// queue was full.
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_frames_dropped_total",
		Help: "Total number of frames dropped by decode backends, by backend.",
	}, []string{"backend"})

	// RecordingsSavedTotal counts recordings saved by outcome.
	RecordingsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveplay_recordings_saved_total",
		Help: "Total number of recordings finalized, by outcome.",
	}, []string{"outcome"})
)

// RecordPlayAttempt increments the play attempt counter.
func RecordPlayAttempt(outcome string) {
	PlayAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObservePlayStartup records the startup latency of a session.
func ObservePlayStartup(d time.Duration) {
	PlayStartupLatency.Observe(d.Seconds())
}

// IncTimeout records a watchdog-driven forced pause.
func IncTimeout(reason string) {
	TimeoutsTotal.WithLabelValues(reason).Inc()
}

// IncWatchdogFired records a deadline expiry.
func IncWatchdogFired(name string) {
	if name == "" {
		name = "unknown"
	}
	WatchdogFiredTotal.WithLabelValues(name).Inc()
}

// IncRenderTick records one rendered frame.
func IncRenderTick(backend string) {
	RenderTicksTotal.WithLabelValues(backend).Inc()
}

// IncBackendSelected records the primary backend picked for a session.
func IncBackendSelected(backend string) {
	BackendSelectedTotal.WithLabelValues(backend).Inc()
}

// IncTeardownError records a swallowed destroy error.
func IncTeardownError(resource string) {
	TeardownErrorsTotal.WithLabelValues(resource).Inc()
}

// SetSessionState publishes the loading/playing flags.
func SetSessionState(loading, playing bool) {
	Loading.Set(boolGauge(loading))
	Playing.Set(boolGauge(playing))
}

// SetWindowStats publishes the last completed stats window.
func SetWindowStats(fps, bufferedMs int) {
	FramesPerSecond.Set(float64(fps))
	BufferedMilliseconds.Set(float64(bufferedMs))
}

// AddTransportBytes records received stream bytes.
func AddTransportBytes(scheme string, n int) {
	TransportBytesTotal.WithLabelValues(scheme).Add(float64(n))
}

// IncTransportError records a transport failure of the given kind.
func IncTransportError(kind string) {
	TransportErrorsTotal.WithLabelValues(kind).Inc()
}

// IncFrameDropped records a frame discarded by a decode backend.
func IncFrameDropped(backend string) {
	FramesDroppedTotal.WithLabelValues(backend).Inc()
}

// IncRecordingSaved records a finalized recording.
func IncRecordingSaved(outcome string) {
	RecordingsSavedTotal.WithLabelValues(outcome).Inc()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
