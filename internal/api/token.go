package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	// ErrNoToken is returned by authenticated calls when nobody is logged in.
	ErrNoToken = errors.New("api: not logged in")
	// ErrSessionExpired is returned without a network round trip when the
	// stored token's exp claim is in the past.
	ErrSessionExpired = errors.New("api: session expired")
)

// TokenStore is where the bearer token lives between requests.
type TokenStore interface {
	AuthToken() string
}

// StoreTokenSource adapts a TokenStore to oauth2.TokenSource.
func StoreTokenSource(store TokenStore) oauth2.TokenSource {
	return &storeTokenSource{store: store, now: time.Now}
}

type storeTokenSource struct {
	store TokenStore
	now   func() time.Time
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	raw := s.store.AuthToken()
	if raw == "" {
		return nil, ErrNoToken
	}
	exp := TokenExpiry(raw)
	if !exp.IsZero() && !s.now().Before(exp) {
		return nil, ErrSessionExpired
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer", Expiry: exp}, nil
}

// TokenExpiry reads the exp claim from a JWT without verifying its
// signature. Opaque tokens and tokens without exp return the zero time.
func TokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
