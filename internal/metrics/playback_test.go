package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counterVec.WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func TestSetSessionState(t *testing.T) {
	tests := []struct {
		name             string
		loading, playing bool
	}{
		{"idle", false, false},
		{"loading", true, false},
		{"playing", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetSessionState(tt.loading, tt.playing)
			assert.Equal(t, boolGauge(tt.loading), getGaugeValue(t, Loading))
			assert.Equal(t, boolGauge(tt.playing), getGaugeValue(t, Playing))
		})
	}
}

func TestSetWindowStats(t *testing.T) {
	SetWindowStats(25, 340)
	assert.InDelta(t, 25, getGaugeValue(t, FramesPerSecond), 0)
	assert.InDelta(t, 340, getGaugeValue(t, BufferedMilliseconds), 0)
}

func TestCountersByLabel(t *testing.T) {
	before := getCounterVecValue(t, TimeoutsTotal, "heart timeout")
	IncTimeout("heart timeout")
	IncTimeout("heart timeout")
	assert.InDelta(t, before+2, getCounterVecValue(t, TimeoutsTotal, "heart timeout"), 0)

	before = getCounterVecValue(t, TransportBytesTotal, "ws")
	AddTransportBytes("ws", 188*7)
	assert.InDelta(t, before+188*7, getCounterVecValue(t, TransportBytesTotal, "ws"), 0)

	before = getCounterVecValue(t, WatchdogFiredTotal, "unknown")
	IncWatchdogFired("")
	assert.InDelta(t, before+1, getCounterVecValue(t, WatchdogFiredTotal, "unknown"), 0)

	before = getCounterVecValue(t, BusPublishedTotal, "unknown")
	IncBusPublished("")
	assert.InDelta(t, before+1, getCounterVecValue(t, BusPublishedTotal, "unknown"), 0)
}

func TestObservePlayStartup(t *testing.T) {
	ObservePlayStartup(1500 * time.Millisecond)

	metric := &dto.Metric{}
	require.NoError(t, PlayStartupLatency.Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleSum(), 1.5)
}
