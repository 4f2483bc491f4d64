package player

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadingTimeout(t *testing.T) {
	h := newHarness(t)
	h.c.UpdateOption(config.Patch{Timeout: config.Ptr(5)})
	require.NoError(t, h.c.Play(context.Background(), ""))

	h.clk.Advance(4 * time.Second)
	assert.Zero(t, h.events.count("timeout:loading timeout"))
	assert.True(t, h.c.Loading())

	h.clk.Advance(time.Second)
	assert.Equal(t, 1, h.events.count("timeout:loading timeout"))
	st := h.c.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Playing)
	assert.Equal(t, 1, h.transport().destroyed)

	h.clk.Advance(time.Minute)
	assert.Equal(t, 1, h.events.count("timeout:loading timeout"), "fires once")
	assert.Zero(t, h.events.count("timeout:heart timeout"))

	// The session is reusable after a timeout.
	require.NoError(t, h.c.Play(context.Background(), ""))
	assert.True(t, h.c.Loading())
}

func TestLoadingTimeout_CancelledByFirstFrame(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Play(context.Background(), ""))
	h.clk.Advance(9 * time.Second)
	h.backend(BackendWorker).tick(0)

	h.clk.Advance(2 * time.Second)
	assert.Zero(t, h.events.count("timeout:loading timeout"))
	assert.True(t, h.c.Playing())
}

func TestHeartTimeout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Play(context.Background(), ""))

	h.ticks(BackendWorker, 100)
	require.True(t, h.c.Playing())
	assert.Zero(t, h.events.count("timeout:heart timeout"))

	h.clk.Advance(10*time.Second - time.Millisecond)
	assert.True(t, h.c.Playing(), "deadline not reached")

	h.clk.Advance(time.Millisecond)
	assert.Equal(t, 1, h.events.count("timeout:heart timeout"))
	assert.False(t, h.c.Playing())
	assert.False(t, h.c.Loading())

	events := h.events.all()
	assert.Equal(t, "timeout:heart timeout", events[len(events)-1], "timeout follows the pause")
	assert.Equal(t, 1, h.events.count("playing:true"))
	assert.Equal(t, 1, h.events.count("playing:false"))

	h.clk.Advance(time.Minute)
	assert.Equal(t, 1, h.events.count("timeout:heart timeout"))
}

func TestHeartTimeout_RearmedByEveryTick(t *testing.T) {
	h := newHarness(t, withOptions(func(o *config.Options) { o.Timeout = 1 }))
	require.NoError(t, h.c.Play(context.Background(), ""))
	b := h.backend(BackendWorker)

	for i := 0; i < 10; i++ {
		h.clk.Advance(900 * time.Millisecond)
		b.tick(time.Duration(i) * 900 * time.Millisecond)
	}
	assert.Zero(t, h.events.count("timeout:heart timeout"))
	assert.True(t, h.c.Playing())
}

func TestTimeoutIgnoredAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Play(context.Background(), ""))
	h.backend(BackendWorker).tick(0)
	require.NoError(t, h.c.Close(context.Background()))

	h.clk.Advance(time.Minute)
	assert.Zero(t, h.events.count("timeout:heart timeout"))
	assert.Zero(t, h.events.count("timeout:loading timeout"))
}

func TestStatsWindows(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Play(context.Background(), ""))
	b := h.backend(BackendWorker)

	start := h.clk.Now()
	for i := 0; i <= 75; i++ {
		at := time.Duration(i) * time.Second / 30
		h.clk.Advance(start.Add(at).Sub(h.clk.Now()))
		b.emit(media.Tick{PTS: at, BufferedMs: 80})
	}

	assert.Equal(t, 1, h.events.count("stats:30"))
	assert.Equal(t, 1, h.events.count("stats:29"))
	assert.Equal(t, 2, h.events.count("performance:good"))
	s := h.c.Stats()
	assert.Equal(t, 29, s.FPS)
	assert.Equal(t, 80, s.BufferedMs)
	assert.Equal(t, "2000", s.LastPts)

	require.NoError(t, h.c.Close(context.Background()))
	assert.Zero(t, h.c.Stats().FPS, "close resets stats")
}
