// Package authpw provides email/password sign-in against stored bcrypt
// hashes.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"experiences/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// UserStore defines the storage interface for sign-in
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user and attaches their role names
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, ErrMissingCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return store.User{}, fmt.Errorf("load roles: %w", err)
	}
	user.Roles = roles
	return user, nil
}

// HashPassword produces the stored form of a password
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// DisplayName picks the best human-readable name for a user
func DisplayName(user store.User) string {
	full := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if full != "" {
		return full
	}
	return user.Username
}
