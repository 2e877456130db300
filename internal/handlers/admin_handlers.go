package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/service"
)

func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.authService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", "LIST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handlers) AdminListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	sessions, err := h.analyticsService.ListSessions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", "LIST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

// AdminSessionEngagement reports sections viewed, event counts and the
// completion rate for one viewer session.
func (h *Handlers) AdminSessionEngagement(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	report, err := h.analyticsService.SessionEngagement(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Viewer session not found", "SESSION_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build engagement report", "REPORT_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) AdminTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.analyticsService.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load totals", "REPORT_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

func statusFilter(r *http.Request) *string {
	if v := r.URL.Query().Get("status"); v != "" {
		return &v
	}
	return nil
}

func (h *Handlers) AdminListMeetings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	meetings, err := h.leadService.ListMeetings(r.Context(), statusFilter(r), limit, offset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meeting_requests": meetings,
		"limit":            limit,
		"offset":           offset,
	})
}

func (h *Handlers) AdminListDataRoom(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	requests, err := h.leadService.ListDataRoom(r.Context(), statusFilter(r), limit, offset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data_room_requests": requests,
		"limit":              limit,
		"offset":             offset,
	})
}

func (h *Handlers) AdminUpdateMeetingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	meeting, err := h.leadService.UpdateMeetingStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update meeting request", "UPDATE_FAILED")
		return
	}
	if meeting == nil {
		writeError(w, http.StatusNotFound, "Meeting request not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, meeting)
}

func (h *Handlers) AdminUpdateDataRoomStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	request, err := h.leadService.UpdateDataRoomStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update data room request", "UPDATE_FAILED")
		return
	}
	if request == nil {
		writeError(w, http.StatusNotFound, "Data room request not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, request)
}
