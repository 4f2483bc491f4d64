package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFlag  = NewTopic[bool]("test_flag")
	testError = NewTopic[error]("test_error")
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var got []string
	Subscribe(b, testFlag, func(v bool) { got = append(got, "a") })
	Subscribe(b, testFlag, func(v bool) { got = append(got, "b") })

	Publish(b, testFlag, true)
	Publish(b, testFlag, false)

	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
}

func TestOnceFiresAtMostOnce(t *testing.T) {
	b := New()
	calls := 0
	Once(b, testError, func(err error) { calls++ })

	Publish(b, testError, errors.New("first"))
	Publish(b, testError, errors.New("second"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Listeners(testError.Event()))
}

func TestOnceConcurrentPublishersSettleOnce(t *testing.T) {
	b := New()
	var mu sync.Mutex
	calls := 0
	Once(b, testFlag, func(bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Publish(b, testFlag, true)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	b := New()
	calls := 0
	sub := Subscribe(b, testFlag, func(bool) { calls++ })

	Publish(b, testFlag, true)
	sub.Close()
	sub.Close()
	Publish(b, testFlag, true)

	assert.Equal(t, 1, calls)
}

func TestClearDetachesAll(t *testing.T) {
	b := New()
	calls := 0
	Subscribe(b, testFlag, func(bool) { calls++ })
	Subscribe(b, testError, func(error) { calls++ })

	b.Clear()
	Publish(b, testFlag, true)
	Publish(b, testError, nil)

	assert.Equal(t, 0, calls)
}

func TestListenerMayPublishReentrantly(t *testing.T) {
	b := New()
	var seen []bool
	Subscribe(b, testFlag, func(v bool) {
		seen = append(seen, v)
		if v {
			Publish(b, testFlag, false)
		}
	})

	Publish(b, testFlag, true)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestListenerPanicIsRecoveredAndCounted(t *testing.T) {
	b := New()
	before := getCounterValue(t, metrics.BusListenerPanicsTotal.WithLabelValues("test_flag"))

	delivered := false
	Subscribe(b, testFlag, func(bool) { panic("boom") })
	Subscribe(b, testFlag, func(bool) { delivered = true })

	require.NotPanics(t, func() { Publish(b, testFlag, true) })
	assert.True(t, delivered, "later listeners still run")

	after := getCounterValue(t, metrics.BusListenerPanicsTotal.WithLabelValues("test_flag"))
	assert.Equal(t, before+1, after)
}
