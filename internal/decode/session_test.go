package decode

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/clock"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/player"
)

type instantTransport struct{ events *bus.Bus }

func (t *instantTransport) FetchStream(url string) error {
	bus.Publish(t.events, media.StreamSuccess, url)
	return nil
}
func (t *instantTransport) Events() *bus.Bus { return t.events }
func (t *instantTransport) Destroy() error   { return nil }

type captureDemuxer struct{ sink media.FrameSink }

func (d *captureDemuxer) Write(p []byte) (int, error) { return len(p), nil }
func (d *captureDemuxer) Destroy() error              { return nil }

// newWorkerSession builds a controller on the real worker backend. The
// returned function feeds frames as the demuxer would.
func newWorkerSession(t *testing.T) (*player.Controller, func(media.Frame)) {
	t.Helper()
	demuxers := make(chan *captureDemuxer, 1)
	c, err := player.New(config.Defaults(), player.Deps{
		Clock: clock.Real(),
		Probe: capability.Static{},
		NewTransport: func(io.Writer) (player.Transport, error) {
			return &instantTransport{events: bus.New()}, nil
		},
		NewDemuxer: func(fs media.FrameSink, _ func(media.Kind, int)) (player.Demuxer, error) {
			d := &captureDemuxer{sink: fs}
			demuxers <- d
			return d, nil
		},
		NewBackend: New,
		Video:      &surface{},
		Audio:      &sink{},
	})
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	require.Equal(t, player.BackendWorker, c.Selection().Primary)

	require.NoError(t, c.Play(context.Background(), "http://cam.test/live.ts"))
	d := <-demuxers
	return c, d.sink.WriteFrame
}

func TestWorkerSession_ListenerStopsSessionOnFirstFrame(t *testing.T) {
	tests := []struct {
		name string
		stop func(c *player.Controller) error
	}{
		{"pause", func(c *player.Controller) error { return c.Pause(context.Background(), false) }},
		{"close", func(c *player.Controller) error { return c.Close(context.Background()) }},
		{"destroy", func(c *player.Controller) error { c.Destroy(); return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, feed := newWorkerSession(t)
			stopped := make(chan error, 1)
			bus.Subscribe(c.Events(), player.EventStart, func(struct{}) {
				stopped <- tt.stop(c)
			})

			feed(video(0))

			select {
			case err := <-stopped:
				require.NoError(t, err)
			case <-time.After(wait):
				t.Fatal("stopping the session from a start listener did not return")
			}
			st := c.State()
			assert.False(t, st.Playing)
			assert.False(t, st.Loading)
		})
	}
}

func TestWorkerSession_PlayingListenerMayClose(t *testing.T) {
	c, feed := newWorkerSession(t)
	paused := make(chan error, 1)
	bus.Subscribe(c.Events(), player.EventPlaying, func(on bool) {
		if on {
			paused <- c.Pause(context.Background(), true)
		}
	})

	feed(video(0))

	select {
	case err := <-paused:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("close from a playing listener did not return")
	}
	assert.Equal(t, player.PhaseIdle, c.State().Phase)
}
