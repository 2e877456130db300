package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Verification types carried by the emailed artifact.
const (
	VerifyTypeEmail     = "email"
	VerifyTypeMagicLink = "magiclink"
)

const MaxVerificationAttempts = 5

type MagicLinkRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Type  string `json:"type,omitempty"`
}

type VerifyTokenRequest struct {
	TokenHash string `json:"token_hash"`
	Type      string `json:"type,omitempty"`
	Email     string `json:"email"`
}

type SessionResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

// LoginCode is a one-time login artifact. At most one is live per email:
// issuing a new one supersedes any outstanding one.
type LoginCode struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	CodeHash     string     `json:"-"`
	TokenHash    string     `json:"-"`
	RedirectTo   string     `json:"redirect_to"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
	Attempts     int        `json:"attempts"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (c *LoginCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

func (c *LoginCode) IsConsumed() bool {
	return c.UsedAt != nil || c.SupersededAt != nil
}

func (c *LoginCode) CanAttempt() bool {
	return c.Attempts < MaxVerificationAttempts && !c.IsExpired() && !c.IsConsumed()
}

var codeRegex = regexp.MustCompile(`^\d{6}$`)

func (r *MagicLinkRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmailFormat(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func (r *MagicLinkRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.RedirectTo = strings.TrimSpace(r.RedirectTo)
}

func (r *VerifyCodeRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmailFormat(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Token == "" {
		return fmt.Errorf("code is required")
	}
	if !codeRegex.MatchString(r.Token) {
		return fmt.Errorf("code must be 6 digits")
	}
	if r.Type != "" && r.Type != VerifyTypeEmail {
		return fmt.Errorf("unsupported verification type: %s", r.Type)
	}
	return nil
}

func (r *VerifyCodeRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Token = strings.TrimSpace(r.Token)
	if r.Type == "" {
		r.Type = VerifyTypeEmail
	}
}

func (r *VerifyTokenRequest) Validate() error {
	if r.TokenHash == "" {
		return fmt.Errorf("token_hash is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmailFormat(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Type != "" && r.Type != VerifyTypeMagicLink {
		return fmt.Errorf("unsupported verification type: %s", r.Type)
	}
	return nil
}

func (r *VerifyTokenRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.TokenHash = strings.TrimSpace(r.TokenHash)
	if r.Type == "" {
		r.Type = VerifyTypeMagicLink
	}
}
