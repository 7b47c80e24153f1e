package handler

import (
	"net/http"
	"time"

	"github.com/go-premium-api/internal/application/entitlement"
	"github.com/go-premium-api/internal/transport/http/middleware"
)

type MeHandler struct {
	ents entitlement.Service
}

func NewMeHandler(ents entitlement.Service) *MeHandler { return &MeHandler{ents: ents} }

type meResponse struct {
	Email       string    `json:"email"`
	Premium     bool      `json:"premium"`
	ActivatedAt time.Time `json:"activated_at"`
}

func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	e, err := h.ents.Get(r.Context(), claims.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Email: e.Identity, Premium: true, ActivatedAt: e.ActivatedAt})
}
