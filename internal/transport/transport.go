// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transport fetches live streams over HTTP(S) or WebSocket and
// writes the payload bytes to a sink.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrUnsupportedScheme = errors.New("transport: unsupported url scheme")
	ErrDestroyed         = errors.New("transport: destroyed")
	ErrStreamEnded       = errors.New("transport: stream ended")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

const defaultChunkSize = 64 << 10

// Option configures a Stream.
type Option func(*Stream)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Stream) { s.client = c }
}

// WithOrigin sets the Origin header of WebSocket handshakes.
func WithOrigin(origin string) Option {
	return func(s *Stream) { s.origin = origin }
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// Stream is a transport that picks HTTP or WebSocket by URL scheme.
// Outcomes are published on Events(): media.StreamSuccess once the first
// response or handshake succeeds, then at most one media.FetchError or
// media.SocketError.
type Stream struct {
	sink   io.Writer
	events *bus.Bus
	client *http.Client
	origin string
	chunk  int
	logger zerolog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	closer    io.Closer
	destroyed bool
	wg        sync.WaitGroup
}

// New returns a transport writing to sink.
func New(sink io.Writer, opts ...Option) *Stream {
	s := &Stream{
		sink:   sink,
		events: bus.New(),
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		origin: "http://localhost/",
		chunk:  defaultChunkSize,
		logger: log.WithComponent("transport"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Events returns the outcome bus.
func (s *Stream) Events() *bus.Bus { return s.events }

// FetchStream starts fetching rawURL in the background. A previous fetch is
// cancelled first.
func (s *Stream) FetchStream(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("transport: parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)

	var run func(ctx context.Context, sig *signals)
	switch scheme {
	case "http", "https":
		run = func(ctx context.Context, sig *signals) { s.runHTTP(ctx, sig, rawURL, scheme) }
	case "ws", "wss":
		run = func(ctx context.Context, sig *signals) { s.runWebSocket(ctx, sig, rawURL, scheme) }
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	s.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	sig := &signals{events: s.events}

	s.logger.Info().
		Str(log.FieldEvent, "transport.fetch_start").
		Str(log.FieldURL, log.MaskURL(rawURL)).
		Msg("fetching stream")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx, sig)
	}()
	return nil
}

// Destroy stops the fetch and waits for the reader goroutine.
func (s *Stream) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.stopLocked()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug().Str(log.FieldEvent, "transport.destroyed").Msg("transport destroyed")
	return nil
}

func (s *Stream) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.closer != nil {
		_ = s.closer.Close()
		s.closer = nil
	}
}

// setCloser registers c to be closed on Destroy, unless ctx is already done.
func (s *Stream) setCloser(ctx context.Context, c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.closer = c
	return true
}

// sinkError marks a refusal by the downstream writer, which ends the fetch
// without a failure event.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "transport: sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// pump copies from read to the sink until read fails, the sink refuses or
// ctx ends.
func (s *Stream) pump(ctx context.Context, read func([]byte) (int, error), scheme string) error {
	buf := make([]byte, s.chunk)
	for {
		n, err := read(buf)
		if n > 0 {
			metrics.AddTransportBytes(scheme, n)
			if _, werr := s.sink.Write(buf[:n]); werr != nil {
				return &sinkError{err: werr}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return err
		}
	}
}

// finish reports how a running fetch ended.
func (s *Stream) finish(ctx context.Context, sig *signals, topic bus.Topic[error], err error) {
	if ctx.Err() != nil {
		return
	}
	var se *sinkError
	if errors.As(err, &se) {
		s.logger.Debug().Err(err).Str(log.FieldEvent, "transport.sink_closed").Msg("downstream closed, stopping fetch")
		return
	}
	s.logger.Warn().Err(err).Str(log.FieldEvent, "transport.fetch_ended").Msg("stream fetch ended")
	sig.fail(topic, err)
}

// signals publishes at most one success and one failure per fetch.
type signals struct {
	events *bus.Bus

	mu        sync.Mutex
	succeeded bool
	failed    bool
}

func (s *signals) success(u string) {
	s.mu.Lock()
	if s.succeeded || s.failed {
		s.mu.Unlock()
		return
	}
	s.succeeded = true
	s.mu.Unlock()
	bus.Publish(s.events, media.StreamSuccess, u)
}

func (s *signals) fail(topic bus.Topic[error], err error) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.mu.Unlock()
	bus.Publish(s.events, topic, err)
}
