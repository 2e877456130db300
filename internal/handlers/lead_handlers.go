package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/susumicapital/investor-portal/internal/domain"
)

// callerUserID returns the authenticated user id when a bearer token was
// attached; lead submissions also work anonymously.
func callerUserID(r *http.Request) *string {
	if claims := getClaims(r); claims != nil {
		id := claims.Sub
		return &id
	}
	return nil
}

// SubmitMeeting captures a meeting request and returns the scheduling URL.
func (h *Handlers) SubmitMeeting(w http.ResponseWriter, r *http.Request) {
	var input domain.MeetingRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	submission, err := h.leadService.SubmitMeeting(r.Context(), &input, callerUserID(r))
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save meeting request", "LEAD_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, submission)
}

// SubmitDataRoom captures a data room access request. Requests without the
// NDA acknowledgement never reach the database.
func (h *Handlers) SubmitDataRoom(w http.ResponseWriter, r *http.Request) {
	var input domain.DataRoomRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	req, err := h.leadService.SubmitDataRoom(r.Context(), &input, callerUserID(r))
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save data room request", "LEAD_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, req)
}
