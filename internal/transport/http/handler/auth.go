package handler

import (
	"net/http"

	"github.com/go-premium-api/internal/application/auth"
	"github.com/go-premium-api/internal/domain"
)

// AuthHandler serves the code, login and email confirmation endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestCodeRequest
	if !decode(w, r, &req) {
		return
	}
	devCode, err := h.svc.RequestLoginCode(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeEnvelope{Success: true, Message: "OTP code sent by email", DevCode: devCode})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{Success: true, Token: token, Email: domain.NormalizeEmail(req.Email)})
}

func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	st, err := h.svc.Status(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestCodeRequest
	if !decode(w, r, &req) {
		return
	}
	devCode, err := h.svc.RequestEmailConfirmation(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeEnvelope{Success: true, Message: "confirmation code sent by email", DevCode: devCode})
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.ConfirmEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmEmail(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "email confirmed"})
}
