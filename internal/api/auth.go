package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lostfound/admin-console/internal/model"
)

const currentUserTTL = 60 * time.Second

type currentUserEntry struct {
	user model.User
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type wireLogin struct {
	AccessToken string    `json:"access_token"`
	Token       string    `json:"token"`
	User        *wireUser `json:"user"`
}

// Login exchanges credentials for a bearer token. It is sent without any
// stored token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var resp wireLogin
	err := c.do(ctx, c.anon, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	token := firstNonEmpty(resp.AccessToken, resp.Token)
	if token == "" {
		return LoginResult{}, errors.New("login: response carried no token")
	}
	c.me.Delete(token)

	res := LoginResult{Token: token, ExpiresAt: TokenExpiry(token)}
	if resp.User != nil {
		res.User = resp.User.toModel()
		c.me.Set(token, &currentUserEntry{user: res.User})
	}
	return res, nil
}

// CurrentUser returns the account behind token, authenticating with token
// itself rather than the stored one. Results are cached per token for a
// minute. An expired JWT fails locally with ErrSessionExpired.
func (c *Client) CurrentUser(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrNoToken
	}
	if exp := TokenExpiry(token); !exp.IsZero() && !c.now().Before(exp) {
		c.me.Delete(token)
		return model.User{}, ErrSessionExpired
	}
	if e, ok := c.me.Get(token); ok {
		return e.user, nil
	}
	var w wireUser
	if err := c.do(ctx, c.bearer(token), http.MethodGet, "/auth/me", nil, nil, &w); err != nil {
		return model.User{}, fmt.Errorf("current user: %w", err)
	}
	u := w.toModel()
	c.me.Set(token, &currentUserEntry{user: u})
	return u, nil
}

// ForgetUser drops the cached account for token (logout).
func (c *Client) ForgetUser(token string) {
	c.me.Delete(token)
}
