package transport

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/websocket"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	err error
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type outcome struct {
	success chan string
	fetch   chan error
	socket  chan error
}

func watch(s *Stream) outcome {
	o := outcome{success: make(chan string, 1), fetch: make(chan error, 1), socket: make(chan error, 1)}
	bus.Subscribe(s.Events(), media.StreamSuccess, func(u string) { o.success <- u })
	bus.Subscribe(s.Events(), media.FetchError, func(err error) { o.fetch <- err })
	bus.Subscribe(s.Events(), media.SocketError, func(err error) { o.socket <- err })
	return o
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error event")
		return nil
	}
}

func TestHTTP_StreamsBodyThenEnds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		for i := 0; i < 3; i++ {
			_, _ = w.Write(bytes.Repeat([]byte{0x47}, 188))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	sink := &syncBuffer{}
	s := New(sink, WithHTTPClient(srv.Client()), WithChunkSize(100))
	defer func() { _ = s.Destroy() }()
	o := watch(s)

	require.NoError(t, s.FetchStream(srv.URL+"/live.ts"))
	assert.Equal(t, srv.URL+"/live.ts", <-o.success)
	assert.ErrorIs(t, waitErr(t, o.fetch), ErrStreamEnded)
	assert.Equal(t, 3*188, sink.Len())
}

func TestHTTP_StatusIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New(&syncBuffer{}, WithHTTPClient(srv.Client()))
	defer func() { _ = s.Destroy() }()
	o := watch(s)

	require.NoError(t, s.FetchStream(srv.URL))
	var se *StatusError
	require.ErrorAs(t, waitErr(t, o.fetch), &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Empty(t, o.success)
}

func TestHTTP_SinkRefusalEndsQuietly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	s := New(&syncBuffer{err: errors.New("closed")}, WithHTTPClient(srv.Client()))
	o := watch(s)
	require.NoError(t, s.FetchStream(srv.URL))
	<-o.success
	require.NoError(t, s.Destroy())
	assert.Empty(t, o.fetch)
}

func TestDestroy_StopsEndlessStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for {
			if _, err := w.Write(make([]byte, 188)); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	sink := &syncBuffer{}
	s := New(sink, WithHTTPClient(srv.Client()))
	o := watch(s)
	require.NoError(t, s.FetchStream(srv.URL))
	<-o.success
	require.Eventually(t, func() bool { return sink.Len() > 0 }, 5*time.Second, time.Millisecond)

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy(), "destroy is idempotent")
	assert.Empty(t, o.fetch, "destroy is not a failure")
	assert.ErrorIs(t, s.FetchStream(srv.URL), ErrDestroyed)
}

func TestWebSocket_StreamsFrames(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		for _, chunk := range []string{"abc", "def", "ghi"} {
			if _, err := ws.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &syncBuffer{}
	s := New(sink)
	defer func() { _ = s.Destroy() }()
	o := watch(s)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	require.NoError(t, s.FetchStream(wsURL))
	assert.Equal(t, wsURL, <-o.success)
	assert.ErrorIs(t, waitErr(t, o.socket), ErrStreamEnded)
	assert.Equal(t, "abcdefghi", sink.String())
	assert.Empty(t, o.fetch)
}

func TestWebSocket_DialFailureIsSocketError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New(&syncBuffer{})
	defer func() { _ = s.Destroy() }()
	o := watch(s)

	require.NoError(t, s.FetchStream("ws"+strings.TrimPrefix(srv.URL, "http")))
	assert.Error(t, waitErr(t, o.socket))
}

func TestFetchStream_UnsupportedScheme(t *testing.T) {
	s := New(&syncBuffer{})
	defer func() { _ = s.Destroy() }()
	assert.ErrorIs(t, s.FetchStream("rtsp://cam/live"), ErrUnsupportedScheme)
}
