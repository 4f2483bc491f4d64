package stats

import (
	"testing"
	"time"

	"github.com/ManuGH/liveplay/internal/clock/clocktest"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPSLevel(t *testing.T) {
	assert.Equal(t, LevelGood, FPSLevel(30))
	assert.Equal(t, LevelGood, FPSLevel(24))
	assert.Equal(t, LevelFair, FPSLevel(23))
	assert.Equal(t, LevelFair, FPSLevel(15))
	assert.Equal(t, LevelBad, FPSLevel(14))
	assert.Equal(t, LevelBad, FPSLevel(0))
	assert.Equal(t, "fair", LevelFair.String())
}

func TestAggregator_ThirtyFPSForTwoAndAHalfSeconds(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	clk := clocktest.New(start)
	agg := New(clk)

	var snaps []Snapshot
	for i := 0; i <= 75; i++ {
		at := time.Duration(i) * time.Second / 30
		clk.Advance(start.Add(at).Sub(clk.Now()))
		if s, ok := agg.Add(media.Tick{PTS: at, BufferedMs: 40}); ok {
			snaps = append(snaps, s)
		}
	}

	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.InDelta(t, 30, s.FPS, 1)
		assert.Equal(t, 40, s.BufferedMs)
		assert.Equal(t, LevelGood, FPSLevel(s.FPS))
	}
	// The tick closing a window is counted in neither window.
	assert.Equal(t, 30, snaps[0].FPS)
	assert.Equal(t, 29, snaps[1].FPS)
	assert.Equal(t, "1000", snaps[0].LastPts)
	assert.Equal(t, "2000", snaps[1].LastPts)
	assert.Positive(t, agg.Pending(), "third window is still open")
}

func TestAggregator_Bitrate(t *testing.T) {
	start := time.Unix(0, 0)
	clk := clocktest.New(start)
	agg := New(clk)

	agg.Add(media.Tick{})
	agg.AddBytes(media.KindVideo, 125_000)
	agg.AddBytes(media.KindAudio, 16_000)
	clk.Advance(time.Second)

	s, ok := agg.Add(media.Tick{PTS: time.Second})
	require.True(t, ok)
	assert.Equal(t, "1 Mbps", s.VideoBitrate)
	assert.Equal(t, "128 kbps", s.AudioBitrate)
	assert.Equal(t, s, agg.Last())
}

func TestAggregator_Reset(t *testing.T) {
	clk := clocktest.New(time.Unix(0, 0))
	agg := New(clk)
	agg.Add(media.Tick{})
	agg.Add(media.Tick{})
	clk.Advance(2 * time.Second)

	agg.Reset()
	assert.Zero(t, agg.Pending())
	assert.Equal(t, Snapshot{}, agg.Last())

	// The window clock restarts at the next tick, so no window closes yet.
	_, ok := agg.Add(media.Tick{})
	assert.False(t, ok)
}
