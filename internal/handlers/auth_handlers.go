package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/service"
)

// MagicLink handles sign-in email requests.
func (h *Handlers) MagicLink(w http.ResponseWriter, r *http.Request) {
	var req domain.MagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	clientIP := net.ParseIP(getClientIP(r))
	if clientIP == nil {
		clientIP = net.ParseIP("0.0.0.0")
	}

	if err := h.authService.RequestMagicLink(r.Context(), &req, clientIP); err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		if errors.Is(err, service.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not send sign-in email", "MAGIC_LINK_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"ok": true,
	})
}

// VerifyCode exchanges a 6-digit code for a session.
func (h *Handlers) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	response, err := h.authService.VerifyCode(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid or expired code", "VERIFICATION_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// VerifyToken exchanges a magic-link token hash for a session.
func (h *Handlers) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	response, err := h.authService.VerifyToken(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid or expired magic link", "VERIFICATION_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// Session returns the authenticated caller's user record.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
		return
	}

	user, err := h.authService.GetUser(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Session user no longer exists", "UNAUTHORIZED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"expires_at": claims.ExpiresAt,
	})
}

// SignOut closes the caller's open viewer sessions. The bearer token itself
// simply expires.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
		return
	}

	if err := h.authService.SignOut(r.Context(), claims.Sub); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign out", "SIGNOUT_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Signed out",
	})
}
