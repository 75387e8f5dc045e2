package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service registers and authenticates users.
type Service struct {
	users      UserRepository
	secret     string
	ttlMinutes int
}

// NewService creates an auth service signing tokens with secret.
func NewService(users UserRepository, secret string, ttlMinutes int) *Service {
	if ttlMinutes <= 0 {
		ttlMinutes = defaultTTLMinutes
	}
	return &Service{users: users, secret: secret, ttlMinutes: ttlMinutes}
}

// TTLMinutes is the lifetime of issued access tokens.
func (s *Service) TTLMinutes() int {
	return s.ttlMinutes
}

// Register validates and stores a new account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateRegistration(email, name, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns a signed access token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateAccessToken(user, s.secret, s.ttlMinutes)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Authenticate parses a bearer token issued by Login.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return ParseToken(token, s.secret)
}
