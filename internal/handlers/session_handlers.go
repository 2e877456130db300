package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/service"
)

// CreateSession opens a viewer session for the authenticated caller.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
		return
	}

	session, err := h.analyticsService.StartSession(r.Context(), claims.Sub, claims.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start session", "SESSION_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// RecordView accepts a section view for the pipeline.
func (h *Handlers) RecordView(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
		return
	}

	var req domain.SectionViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	if err := h.analyticsService.RecordSectionView(r.Context(), sessionID, claims.Sub, &req); err != nil {
		h.writeEventError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RecordClick accepts a CTA click and echoes the client route for the action.
func (h *Handlers) RecordClick(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
		return
	}

	var req domain.CTAClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	route, err := h.analyticsService.RecordCTAClick(r.Context(), sessionID, claims.Sub, &req)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"route":  route,
	})
}

func (h *Handlers) writeEventError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Viewer session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, service.ErrSessionForbidden):
		writeError(w, http.StatusForbidden, "Viewer session belongs to another user", "SESSION_FORBIDDEN")
	case errors.Is(err, service.ErrSessionClosed):
		writeError(w, http.StatusConflict, "Viewer session is closed", "SESSION_CLOSED")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to record event", "EVENT_FAILED")
	}
}
