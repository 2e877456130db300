package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/susumicapital/investor-portal/internal/service"
	"github.com/susumicapital/investor-portal/pkg/auth"
	"github.com/susumicapital/investor-portal/pkg/config"
	"github.com/susumicapital/investor-portal/pkg/logger"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// RateLimiter is the slice of the Redis store the handlers need.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}

type Handlers struct {
	authService      service.AuthService
	analyticsService service.AnalyticsService
	leadService      service.LeadService
	rateLimiter      RateLimiter
	config           *config.Config
}

func New(
	authService service.AuthService,
	analyticsService service.AnalyticsService,
	leadService service.LeadService,
	rateLimiter RateLimiter,
	config *config.Config,
) *Handlers {
	return &Handlers{
		authService:      authService,
		analyticsService: analyticsService,
		leadService:      leadService,
		rateLimiter:      rateLimiter,
		config:           config,
	}
}

// RequireAuth validates the bearer token and stores its claims in context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.parseBearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a valid bearer token is present but lets
// anonymous requests through.
func (h *Handlers) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := h.parseBearer(r); ok {
			r = r.WithContext(withClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route on the caller's role. Admins pass everywhere.
// Must run after RequireAuth.
func (h *Handlers) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := getClaims(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}
			if claims.Role != role && claims.Role != "admin" {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles by client IP under the given key prefix. The limiter
// fails open so a Redis outage never blocks sign-in.
func (h *Handlers) RateLimit(prefix string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + ":" + getClientIP(r)

			allowed, err := h.rateLimiter.CheckRateLimit(r.Context(), key, requests, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) parseBearer(r *http.Request) (*auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, false
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, logger.UserIDKey, claims.Sub)
	return context.WithValue(ctx, claimsKey, claims)
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func isValidationError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "validation failed")
}
