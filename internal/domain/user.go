package domain

import (
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid user roles
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
	RoleUser   = "user"
)

var validRoles = map[string]bool{
	RoleAdmin:  true,
	RoleViewer: true,
	RoleUser:   true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmailFormat(email string) bool {
	return emailRegex.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
