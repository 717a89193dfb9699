package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Tracker   *service.CallTracker
	Hub       *ws.Hub
	StaticDir string
}

func NewHandler(tracker *service.CallTracker, hub *ws.Hub, staticDir string) *Handler {
	return &Handler{
		Tracker:   tracker,
		Hub:       hub,
		StaticDir: staticDir,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)

	r.Route("/api/calls", func(r chi.Router) {
		r.Get("/", h.GetCalls)
		r.Post("/", h.StartCall)
		r.Post("/current/end", h.EndCall)
	})

	if h.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}

func (h *Handler) GetCalls(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(snap))
}

func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Tracker.StartOutboundCall(r.Context(), req.CounterpartyID); err != nil {
		log.Error().Err(err).Str("counterparty_id", req.CounterpartyID).Msg("Failed to start call")
		writeError(w, statusFor(err), err)
		return
	}

	snap, err := h.Tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, newStateDTO(snap))
}

func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	h.Tracker.EndCurrentCall()
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyCounterparty):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCallInProgress), errors.Is(err, domain.ErrCallEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTrackerStopped):
		return http.StatusServiceUnavailable
	}
	switch domain.KindOf(err) {
	case domain.KindConnection:
		return http.StatusBadGateway
	case domain.KindMedia:
		return http.StatusFailedDependency
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, newErrorDTO(err))
}
