// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package control serves an HTTP control surface for a playback session:
// play, pause, close, record, volume and fullscreen commands plus state,
// stats and Prometheus metrics.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/stats"
)

const (
	shutdownTimeout = 3 * time.Second
	apiRateLimit    = 120
)

// Player is the part of a playback controller the control surface drives.
type Player interface {
	SessionID() string
	Options() config.Options
	State() player.State
	Stats() stats.Snapshot

	Play(ctx context.Context, url string) error
	Pause(ctx context.Context, clearView bool) error
	Close(ctx context.Context) error

	StartRecord(name string) error
	StopRecordAndSave() error

	Volume() float64
	SetVolume(v float64)
	Mute(flag bool)
	Fullscreen() bool
	SetFullscreen(v bool)
}

var _ Player = (*player.Controller)(nil)

// Server is a running control surface. It implements player.ControlSurface.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
	done   chan struct{}
	once   sync.Once
	err    error
}

// Listen starts serving p on addr.
func Listen(p Player, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: listen %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           otelhttp.NewHandler(NewHandler(p), "control"),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: log.WithComponent("control").With().Str(log.FieldSessionID, p.SessionID()).Logger(),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str(log.FieldEvent, "control.serve_failed").Msg("control surface stopped")
		}
	}()
	s.logger.Info().Str(log.FieldEvent, "control.listening").Str("addr", ln.Addr().String()).Msg("control surface listening")
	return s, nil
}

// Factory adapts Listen to player.Deps.NewControl.
func Factory(addr string) func(*player.Controller) (player.ControlSurface, error) {
	return func(c *player.Controller) (player.ControlSurface, error) {
		return Listen(c, addr)
	}
}

// Addr is the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Destroy shuts the server down and waits for it. Safe to call twice.
func (s *Server) Destroy() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.err = fmt.Errorf("control: shutdown: %w", err)
			_ = s.srv.Close()
		}
		<-s.done
	})
	return s.err
}

// NewHandler builds the router for p.
func NewHandler(p Player) http.Handler {
	h := &handlers{p: p}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(apiRateLimit, time.Minute))

		r.Get("/state", h.state)
		r.Get("/stats", h.stats)
		r.Post("/play", h.play)
		r.Post("/pause", h.pause)
		r.Post("/close", h.close)
		r.Post("/record", h.startRecord)
		r.Delete("/record", h.stopRecord)
		r.Put("/volume", h.volume)
		r.Put("/fullscreen", h.fullscreen)
	})
	return r
}
