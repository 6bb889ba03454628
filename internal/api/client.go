// Package api is the client for the Lost & Found REST API. Responses are
// normalized into internal/model types at this boundary so the rest of the
// console never sees the API's alternate field names.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

var (
	// ErrUnauthorized is matched by errors for 401 and 403 responses.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrNotFound is matched by errors for 404 responses.
	ErrNotFound = errors.New("api: not found")
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s: status %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %s: status %d", e.Path, e.StatusCode)
}

// Is lets callers use errors.Is with ErrUnauthorized and ErrNotFound.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Tokens supplies the bearer token for authenticated calls. Login is
	// always sent without one.
	Tokens oauth2.TokenSource
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to the Lost & Found REST API.
type Client struct {
	baseURL string
	http    *http.Client
	anon    *http.Client
	me      *ttlCache[string, *currentUserEntry]
	now     func() time.Time
}

// NewClient returns a Client for the given configuration.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("api: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	authed := &http.Client{Timeout: timeout, Transport: rt}
	if cfg.Tokens != nil {
		authed.Transport = &oauth2.Transport{Source: cfg.Tokens, Base: rt}
	}

	return &Client{
		baseURL: base,
		http:    authed,
		anon:    &http.Client{Timeout: timeout, Transport: rt},
		me:      newTTLCache[string, *currentUserEntry](currentUserTTL),
		now:     time.Now,
	}, nil
}

// do performs one request. body is JSON-encoded when non-nil; out is decoded
// from the response when non-nil.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw), Path: path}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage pulls a human message out of the common error body shapes.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, m := range []string{body.Error, body.Detail, body.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// bearer returns a client that authenticates with token instead of the
// configured token source.
func (c *Client) bearer(token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   c.anon.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: c.anon.Transport},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, c.http, http.MethodGet, path, query, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, c.http, method, path, nil, body, out)
}
