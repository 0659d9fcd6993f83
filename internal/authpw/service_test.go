package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"

	"experiences/api/internal/store"
)

type mockUserStore struct {
	users    map[string]store.User
	roles    map[int64][]string
	rolesErr error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users: make(map[string]store.User),
		roles: make(map[int64][]string),
	}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if user, ok := m.users[strings.ToLower(strings.TrimSpace(email))]; ok {
		return user, nil
	}
	return store.User{}, store.ErrUserNotFound
}

func (m *mockUserStore) RolesForUser(_ context.Context, userID int64) ([]string, error) {
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	return m.roles[userID], nil
}

func seedUser(t *testing.T, m *mockUserStore, email, password string, roles ...string) store.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := store.User{ID: int64(len(m.users) + 1), Username: "profe", Email: email, PasswordHash: hash}
	m.users[email] = user
	m.roles[user.ID] = roles
	return user
}

func TestSignInSuccess(t *testing.T) {
	m := newMockUserStore()
	seeded := seedUser(t, m, "ana@ie.edu.co", "correct-horse", "Profesor")
	svc := NewService(m)

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: " ANA@ie.edu.co", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if user.ID != seeded.ID {
		t.Errorf("expected user %d, got %d", seeded.ID, user.ID)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "Profesor" {
		t.Errorf("expected roles [Profesor], got %v", user.Roles)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	m := newMockUserStore()
	seedUser(t, m, "ana@ie.edu.co", "correct-horse")
	svc := NewService(m)

	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "ana@ie.edu.co", Password: "wrong-horse"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	svc := NewService(newMockUserStore())

	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@ie.edu.co", Password: "whatever1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInMissingCredentials(t *testing.T) {
	svc := NewService(newMockUserStore())

	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "  ", Password: "x"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSignInRoleLookupFailure(t *testing.T) {
	m := newMockUserStore()
	seedUser(t, m, "ana@ie.edu.co", "correct-horse")
	m.rolesErr = errors.New("db down")
	svc := NewService(m)

	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "ana@ie.edu.co", Password: "correct-horse"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(store.User{FirstName: "Ana", LastName: "Pérez", Username: "profe"}); got != "Ana Pérez" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := DisplayName(store.User{Username: "profe"}); got != "profe" {
		t.Errorf("DisplayName = %q", got)
	}
}
