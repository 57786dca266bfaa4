// Package handler exposes contact verification over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veranda/internal/contact"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/httputil"
	"veranda/pkg/requestcontext"
)

type Handler struct {
	service *contact.Service
	sender  contact.Sender
	logger  *slog.Logger
}

func New(service *contact.Service, sender contact.Sender, logger *slog.Logger) *Handler {
	return &Handler{service: service, sender: sender, logger: logger}
}

// Register mounts the contact verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/contact", func(r chi.Router) {
		r.Post("/email", h.handleRequestEmail)
		r.Post("/email/confirm", h.handleConfirmEmail)
		r.Post("/phone", h.handleRequestOTP)
		r.Post("/phone/confirm", h.handleConfirmOTP)
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user"))
		return id.UserID{}, false
	}
	return userID, true
}

type requestEmailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleRequestEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[requestEmailRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Email == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "email is required"))
		return
	}
	token, err := h.service.RequestEmailVerification(r.Context(), userID, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.sender.SendEmailToken(r.Context(), userID, req.Email, token); err != nil {
		h.logger.ErrorContext(r.Context(), "email token delivery failed",
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "deliver verification email"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type confirmEmailRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[confirmEmailRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.ConfirmEmail(r.Context(), req.Token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	code, err := h.service.RequestPhoneOTP(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.sender.SendOTP(r.Context(), userID, code); err != nil {
		h.logger.ErrorContext(r.Context(), "otp delivery failed",
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "deliver verification code"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type confirmOTPRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleConfirmOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[confirmOTPRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.ConfirmPhoneOTP(r.Context(), userID, req.Code); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
