package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestService_RegisterAndLogin(t *testing.T) {
	svc := NewService(testRepo(t), "test-secret", 30)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Carol@Example.com", "Carol", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}

	token, got, err := svc.Login(ctx, "carol@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Login() user = %q, want %q", got.ID, user.ID)
	}

	claims, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if claims.Subject != user.ID || claims.Email != "carol@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc := NewService(testRepo(t), "test-secret", 30)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dave@example.com", "Dave", "password-1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "dave@example.com", "password-2"},
		{"unknown email", "erin@example.com", "password-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := NewService(testRepo(t), "test-secret", 30)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		userName string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "Frank", "password-1", ErrInvalidEmail},
		{"display name form", "Frank <frank@example.com>", "Frank", "password-1", ErrInvalidEmail},
		{"long name", "frank@example.com", strings.Repeat("f", 101), "password-1", ErrInvalidName},
		{"short password", "frank@example.com", "Frank", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.email, tt.userName, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.Register(ctx, "gina@example.com", "Gina", "password-1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Register(ctx, "gina@example.com", "Gina", "password-1"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register() duplicate error = %v, want ErrEmailTaken", err)
	}
}
