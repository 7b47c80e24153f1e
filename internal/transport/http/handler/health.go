package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler answers liveness (ping) and readiness (ready) probes.
type HealthHandler struct {
	probe func(context.Context) error
}

// NewHealthHandler takes the store backend probe. A nil probe is always ready.
func NewHealthHandler(probe func(context.Context) error) *HealthHandler {
	return &HealthHandler{probe: probe}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.probe != nil {
			if err := h.probe(r.Context()); err != nil {
				slog.Warn("readiness probe failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
