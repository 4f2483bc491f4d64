package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/stats"
)

const maxBody = 1 << 16

type handlers struct {
	p Player
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	SessionID  string  `json:"sessionId"`
	Phase      string  `json:"phase"`
	Loading    bool    `json:"loading"`
	Playing    bool    `json:"playing"`
	Recording  bool    `json:"recording"`
	HasLoaded  bool    `json:"hasLoaded"`
	Volume     float64 `json:"volume"`
	Fullscreen bool    `json:"fullscreen"`
	URL        string  `json:"url,omitempty"`
	Text       string  `json:"text,omitempty"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	stats.Snapshot
	Performance string `json:"performance"`
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	st := h.p.State()
	opts := h.p.Options()
	writeJSON(w, http.StatusOK, StateResponse{
		SessionID:  h.p.SessionID(),
		Phase:      st.Phase.String(),
		Loading:    st.Loading,
		Playing:    st.Playing,
		Recording:  st.Recording,
		HasLoaded:  st.HasLoaded,
		Volume:     h.p.Volume(),
		Fullscreen: h.p.Fullscreen(),
		URL:        log.MaskURL(opts.URL),
		Text:       opts.Text,
	})
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	snap := h.p.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{Snapshot: snap, Performance: stats.FPSLevel(snap.FPS).String()})
}

type playRequest struct {
	URL string `json:"url"`
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.p.Play(r.Context(), req.URL); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

type pauseRequest struct {
	ClearView bool `json:"clearView"`
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.p.Pause(r.Context(), req.ClearView); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

func (h *handlers) close(w http.ResponseWriter, r *http.Request) {
	if err := h.p.Close(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

type recordRequest struct {
	Name string `json:"name"`
}

func (h *handlers) startRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.p.StartRecord(req.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

func (h *handlers) stopRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.p.StopRecordAndSave(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.state(w, r)
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
	Muted  *bool    `json:"muted"`
}

func (h *handlers) volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Volume == nil && req.Muted == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "volume or muted is required")
		return
	}
	if req.Volume != nil {
		h.p.SetVolume(*req.Volume)
	}
	if req.Muted != nil {
		h.p.Mute(*req.Muted)
	}
	h.state(w, r)
}

type fullscreenRequest struct {
	Fullscreen bool `json:"fullscreen"`
}

func (h *handlers) fullscreen(w http.ResponseWriter, r *http.Request) {
	var req fullscreenRequest
	if !decode(w, r, &req) {
		return
	}
	h.p.SetFullscreen(req.Fullscreen)
	h.state(w, r)
}

// fail maps controller errors onto HTTP statuses.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var te *player.TransportError
	switch {
	case errors.Is(err, player.ErrNoURL):
		writeError(w, r, http.StatusBadRequest, "no_url", err.Error())
	case errors.Is(err, player.ErrDestroyed):
		writeError(w, r, http.StatusGone, "destroyed", err.Error())
	case errors.Is(err, player.ErrClosed):
		writeError(w, r, http.StatusConflict, "closed", err.Error())
	case errors.As(err, &te):
		writeError(w, r, http.StatusBadGateway, string(te.Kind)+"_error", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "canceled", err.Error())
	default:
		logger := log.WithComponentFromContext(r.Context(), "control")
		logger.Error().Err(err).Str(log.FieldEvent, "control.command_failed").Str(log.FieldPath, r.URL.Path).Msg("command failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decode reads an optional JSON body into v. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
