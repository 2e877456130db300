package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/mailer"
	"github.com/susumicapital/investor-portal/internal/repository"
	"github.com/susumicapital/investor-portal/pkg/auth"
	"github.com/susumicapital/investor-portal/pkg/config"
	"github.com/susumicapital/investor-portal/pkg/logger"
)

var ErrRateLimited = errors.New("too many requests")

// Issuance limits per email address. The per-IP limit lives in the handler
// middleware; this one holds even when the caller rotates addresses.
const (
	emailRateLimit       = 5
	emailRateLimitWindow = 15 * time.Minute
)

// RateLimiter is the slice of the Redis store the service needs.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}

type AuthService interface {
	// RequestMagicLink mints a one-time code plus magic token for the email
	// and sends the sign-in email. A failure to send is reported to the
	// caller even though the artifact was stored.
	RequestMagicLink(ctx context.Context, req *domain.MagicLinkRequest, clientIP net.IP) error
	VerifyCode(ctx context.Context, req *domain.VerifyCodeRequest) (*domain.SessionResponse, error)
	VerifyToken(ctx context.Context, req *domain.VerifyTokenRequest) (*domain.SessionResponse, error)
	// SignOut closes all open viewer sessions for the user.
	SignOut(ctx context.Context, userID string) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	// CleanupExpired removes dead login artifacts.
	CleanupExpired(ctx context.Context) (int64, error)
}

type authService struct {
	loginRepo   repository.LoginRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	mailer      mailer.Service
	rateLimiter RateLimiter
	config      *config.Config
}

func NewAuthService(
	loginRepo repository.LoginRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	mailer mailer.Service,
	rateLimiter RateLimiter,
	config *config.Config,
) AuthService {
	return &authService{
		loginRepo:   loginRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		mailer:      mailer,
		rateLimiter: rateLimiter,
		config:      config,
	}
}

func (s *authService) RequestMagicLink(ctx context.Context, req *domain.MagicLinkRequest, clientIP net.IP) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	allowed, err := s.rateLimiter.CheckRateLimit(ctx, "magic_link_email:"+req.Email, emailRateLimit, emailRateLimitWindow)
	if err != nil {
		logger.ErrorContext(ctx, "Email rate limit check failed", "error", err)
		// Fail open on store errors
	} else if !allowed {
		return ErrRateLimited
	}

	code, err := generateLoginCode()
	if err != nil {
		return fmt.Errorf("failed to generate login code: %w", err)
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash login code: %w", err)
	}

	// The raw token never touches the database; only its hash does, and the
	// hash is also what the emailed link carries.
	magicToken := uuid.NewString()
	tokenHash := hashToken(magicToken)

	expiresAt := time.Now().Add(s.config.Auth.LoginCodeTTL)

	if err := s.loginRepo.Create(ctx, req.Email, string(codeHash), tokenHash, req.RedirectTo, expiresAt, clientIP); err != nil {
		return fmt.Errorf("failed to store login code: %w", err)
	}

	magicLink := s.buildMagicLink(req.RedirectTo, tokenHash, req.Email)

	if err := s.mailer.SendLoginEmail(req.Email, code, magicLink); err != nil {
		logger.ErrorContext(ctx, "Failed to send sign-in email", "error", err, "email", req.Email)
		return fmt.Errorf("failed to send sign-in email")
	}

	logger.InfoContext(ctx, "Sign-in email issued", "email", req.Email, "expires_at", expiresAt)
	return nil
}

func (s *authService) VerifyCode(ctx context.Context, req *domain.VerifyCodeRequest) (*domain.SessionResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	valid, err := s.loginRepo.ConsumeCode(ctx, req.Email, req.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify code: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("invalid or expired code")
	}

	return s.issueSession(ctx, req.Email)
}

func (s *authService) VerifyToken(ctx context.Context, req *domain.VerifyTokenRequest) (*domain.SessionResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	valid, err := s.loginRepo.ConsumeTokenHash(ctx, req.TokenHash, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to verify magic link: %w", err)
	}
	if !valid {
		return nil, fmt.Errorf("invalid or expired magic link")
	}

	return s.issueSession(ctx, req.Email)
}

// issueSession ensures a user row exists for the verified email and signs a
// session token. Both verification paths converge here.
func (s *authService) issueSession(ctx context.Context, email string) (*domain.SessionResponse, error) {
	user, err := s.userRepo.EnsureByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	token, err := auth.NewSessionToken(user.ID, user.Email, user.Role, s.config.Auth.JWTSecret, s.config.Auth.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &domain.SessionResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Auth.SessionTTL.Seconds()),
		User:        user,
	}, nil
}

func (s *authService) SignOut(ctx context.Context, userID string) error {
	closed, err := s.sessionRepo.CloseByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to close viewer sessions: %w", err)
	}
	if closed > 0 {
		logger.InfoContext(ctx, "Closed viewer sessions on sign-out", "user_id", userID, "count", closed)
	}
	return nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *authService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.loginRepo.DeleteExpired(ctx)
}

// generateLoginCode returns a uniformly random 6-digit code.
func generateLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *authService) buildMagicLink(redirectTo, tokenHash, email string) string {
	base := redirectTo
	if base == "" {
		base = s.config.Portal.BaseURL
	}
	return fmt.Sprintf("%s/auth/confirm#type=%s&token_hash=%s&email=%s",
		base, domain.VerifyTypeMagicLink, tokenHash, url.QueryEscape(email))
}
