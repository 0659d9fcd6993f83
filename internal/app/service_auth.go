package app

import (
	"context"
	"fmt"
	"time"

	"experiences/api/internal/auth"
	"experiences/api/internal/authpw"
	"experiences/api/internal/store"
)

type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login checks credentials and issues an access token carrying the user's
// roles.
func (s *Service) Login(ctx context.Context, emailAddress, password string) (Session, error) {
	if s.authn == nil || s.tokens == nil {
		return Session{}, fmt.Errorf("%w: sign-in is not configured", ErrUnavailable)
	}
	user, err := s.authn.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	name := authpw.DisplayName(user)
	token, claims, err := s.tokens.Issue(user.ID, name, user.Roles)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  name,
		Roles:     roles,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticate parses a bearer token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Claims, error) {
	if s.tokens == nil {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.Claims{}, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return auth.Claims{}, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return auth.Claims{}, auth.ErrInvalidToken
		}
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims auth.Claims) error {
	if s.revocations == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
