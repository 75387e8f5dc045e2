package auth

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Field limits for registration.
const (
	maxEmailLength    = 254
	maxNameLength     = 100
	minPasswordLength = 8
)

// User is a dashboard account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("name must be at most 100 characters")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks the fields a new account needs.
// The name is optional.
func ValidateRegistration(email, name, password string) error {
	if len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if len(strings.TrimSpace(name)) > maxNameLength {
		return ErrInvalidName
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
