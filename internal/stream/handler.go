package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"camera-relay/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the relay lifecycle and manifests over HTTP using go-chi.
type Handler struct {
	sup     *Supervisor
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Supervisor, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(sup *Supervisor, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{sup: sup, log: log, metrics: m}
}

// Routes mounts the relay endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/stream/{camera_id}", func(r chi.Router) {
		r.Get("/playlist", h.GetPlaylist)
		r.Post("/start", h.StartStream)
		r.Post("/stop", h.StopStream)
		r.Get("/status", h.GetStatus)
		r.Delete("/", h.RemoveStream)
	})
	r.Get("/streams", h.ListStreams)
	r.Post("/streams/sweep", h.Sweep)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type startResponse struct {
	Success  bool     `json:"success"`
	Session  Session  `json:"session"`
	Warnings []string `json:"warnings"`
}

type stopResponse struct {
	Success  bool     `json:"success"`
	Found    bool     `json:"found"`
	Warnings []string `json:"warnings,omitempty"`
}

type statusResponse struct {
	CameraID string   `json:"camera_id"`
	Session  *Session `json:"session"`
}

type listResponse struct {
	Sessions []Session `json:"sessions"`
	Active   int       `json:"active"`
}

type sweepResponse struct {
	Success bool        `json:"success"`
	Report  SweepReport `json:"report"`
}

// GetPlaylist handles GET /stream/{camera_id}/playlist. It always answers
// 200; cameras without an active session get the empty manifest.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	var sess *Session
	if s, ok := h.sup.Session(cameraID); ok {
		if s.Active() && r.UserAgent() != ProbeUserAgent {
			s, _ = h.sup.RecordView(cameraID)
		}
		sess = &s
	}

	if h.metrics != nil {
		h.metrics.IncPlaylistRequests()
	}
	w.Header().Set("Content-Type", PlaylistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(RenderPlaylist(sess)))
}

// StartStream handles POST /stream/{camera_id}/start.
func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	if cameraID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "camera id required"})
		return
	}

	res, err := h.sup.Start(r.Context(), cameraID)
	if err != nil {
		if errors.Is(err, ErrCameraNotFound) {
			h.log.Info("start rejected, unknown camera", slog.String("camera_id", cameraID))
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "camera not found"})
			return
		}
		h.log.Error("start failed", slog.String("camera_id", cameraID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to start stream"})
		return
	}

	warnings := res.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, startResponse{
		Success:  true,
		Session:  res.Session.Redacted(),
		Warnings: warnings,
	})
}

// StopStream handles POST /stream/{camera_id}/stop. Stopping a camera with
// no session succeeds with found=false.
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	res, found := h.sup.Stop(r.Context(), cameraID)
	writeJSON(w, http.StatusOK, stopResponse{Success: true, Found: found, Warnings: res.Warnings()})
}

// GetStatus handles GET /stream/{camera_id}/status. A missing session is
// reported as "session": null, not as an error.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	resp := statusResponse{CameraID: cameraID}
	if s, ok := h.sup.Session(cameraID); ok {
		s = s.Redacted()
		resp.Session = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveStream handles DELETE /stream/{camera_id}.
func (h *Handler) RemoveStream(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	found := h.sup.Remove(r.Context(), cameraID)
	writeJSON(w, http.StatusOK, stopResponse{Success: true, Found: found})
}

// ListStreams handles GET /streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	all := h.sup.Sessions()
	resp := listResponse{Sessions: make([]Session, 0, len(all))}
	for _, s := range all {
		if s.Active() {
			resp.Active++
		}
		resp.Sessions = append(resp.Sessions, s.Redacted())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sweep handles POST /streams/sweep and runs one health sweep inline.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	report := h.sup.SweepAll(r.Context())
	writeJSON(w, http.StatusOK, sweepResponse{Success: true, Report: report})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
