package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/control"
	"github.com/ManuGH/liveplay/internal/decode"
	"github.com/ManuGH/liveplay/internal/demux"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/recorder"
	"github.com/ManuGH/liveplay/internal/render"
	"github.com/ManuGH/liveplay/internal/transport"
	"github.com/ManuGH/liveplay/internal/wakelock"
)

// catalogFile lives next to the recordings.
const catalogFile = "liveplay-catalog.sqlite"

// session owns a controller and the pieces the controller does not destroy.
type session struct {
	ctrl    *player.Controller
	surface *render.Surface
	sink    *render.Sink
	catalog *recorder.Catalog
}

// newDeps wires the production collaborators for opts.
func newDeps(opts config.Options, surface *render.Surface, sink *render.Sink, rec *recorder.Recorder) player.Deps {
	return player.Deps{
		Probe: capability.NewHostProbe(opts.HWDevice, opts.FFmpegBin),
		NewTransport: func(w io.Writer) (player.Transport, error) {
			return transport.New(w), nil
		},
		NewDemuxer: func(sink media.FrameSink, onBytes func(media.Kind, int)) (player.Demuxer, error) {
			return demux.New(sink, onBytes), nil
		},
		NewBackend: decode.New,
		Video:      surface,
		Audio:      sink,
		WakeLock:   wakelock.New(),
		Recorder:   rec,
		NewControl: control.Factory(opts.ControlAddr),
	}
}

// openSession builds the controller. The catalog is optional: a broken
// database only disables cataloguing.
func openSession(opts config.Options) (*session, error) {
	s := &session{
		surface: render.NewSurface(),
		sink:    render.NewSink(),
	}

	if err := os.MkdirAll(opts.RecordDir, 0o755); err != nil {
		return nil, fmt.Errorf("record dir: %w", err)
	}
	var recOpts []recorder.Option
	cat, err := recorder.OpenCatalog(filepath.Join(opts.RecordDir, catalogFile))
	if err != nil {
		logger := log.WithComponent("liveplay")
		logger.Warn().Err(err).Str(log.FieldEvent, "liveplay.catalog_unavailable").Msg("recordings will not be catalogued")
	} else {
		s.catalog = cat
		recOpts = append(recOpts, recorder.WithCatalog(cat))
	}
	rec, err := recorder.New(opts.RecordDir, recOpts...)
	if err != nil {
		s.closeCatalog()
		return nil, fmt.Errorf("recorder: %w", err)
	}

	ctrl, err := player.New(opts, newDeps(opts, s.surface, s.sink, rec))
	if err != nil {
		_ = rec.Destroy()
		s.closeCatalog()
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// Close destroys the controller, then the catalog it may still write to.
func (s *session) Close() {
	s.ctrl.Destroy()
	s.closeCatalog()
}

func (s *session) closeCatalog() {
	if s.catalog != nil {
		_ = s.catalog.Close()
		s.catalog = nil
	}
}
