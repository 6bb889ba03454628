package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lostfound/admin-console/internal/model"
)

type wireUser struct {
	ID                flexString `json:"id"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"display_name"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Role              string     `json:"role"`
	IsActive          flexBool   `json:"is_active"`
	IsVerified        flexBool   `json:"is_verified"`
	ReportsCount      flexInt    `json:"reports_count"`
	MatchesCount      flexInt    `json:"matches_count"`
	SuccessfulMatches flexInt    `json:"successful_matches"`
	CreatedAt         flexTime   `json:"created_at"`
}

func (w wireUser) displayName() string {
	full := strings.TrimSpace(w.FirstName + " " + w.LastName)
	return firstNonEmpty(w.DisplayName, full, w.Email)
}

func (w wireUser) toModel() model.User {
	role, ok := model.ParseRole(w.Role)
	if !ok {
		role = model.RoleUser
	}
	return model.User{
		ID:                string(w.ID),
		Email:             w.Email,
		DisplayName:       w.displayName(),
		Role:              role,
		IsActive:          bool(w.IsActive),
		IsVerified:        bool(w.IsVerified),
		ReportsCount:      int(w.ReportsCount),
		MatchesCount:      int(w.MatchesCount),
		SuccessfulMatches: int(w.SuccessfulMatches),
		CreatedAt:         w.CreatedAt.Time,
	}
}

// UserPatch is a partial user update; nil fields are left alone.
type UserPatch struct {
	IsActive    *bool       `json:"is_active,omitempty"`
	Role        *model.Role `json:"role,omitempty"`
	DisplayName *string     `json:"display_name,omitempty"`
}

// NewUser is the body of a create-user call.
type NewUser struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        model.Role `json:"role"`
}

// GetUsers lists users matching the query (search, role, status, page, limit).
func (c *Client) GetUsers(ctx context.Context, q url.Values) (Page[model.User], error) {
	var raw rawPage[wireUser]
	if err := c.get(ctx, "/admin/users", q, &raw); err != nil {
		return Page[model.User]{}, fmt.Errorf("get users: %w", err)
	}
	page, limit := pageParams(q)
	return decodePage(raw, page, limit, wireUser.toModel), nil
}

// UpdateUser applies a partial update to one user.
func (c *Client) UpdateUser(ctx context.Context, id string, patch UserPatch) error {
	if err := c.send(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(id), patch, nil); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	return nil
}

// CreateUser creates an account and returns it.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (model.User, error) {
	var w wireUser
	if err := c.send(ctx, http.MethodPost, "/admin/users", u, &w); err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return w.toModel(), nil
}

// DeleteUser removes one user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

type wireUserActivity struct {
	UserID            flexString `json:"user_id"`
	ReportsCount      flexInt    `json:"reports_count"`
	TotalReports      flexInt    `json:"total_reports"`
	MatchesCount      flexInt    `json:"matches_count"`
	TotalMatches      flexInt    `json:"total_matches"`
	SuccessfulMatches flexInt    `json:"successful_matches"`
	LastActiveAt      *flexTime  `json:"last_active_at"`
}

// GetUserStats returns activity counters for one user.
func (c *Client) GetUserStats(ctx context.Context, id string) (model.UserActivity, error) {
	var w wireUserActivity
	if err := c.get(ctx, "/admin/users/"+url.PathEscape(id)+"/stats", nil, &w); err != nil {
		return model.UserActivity{}, fmt.Errorf("get user stats %s: %w", id, err)
	}
	return model.UserActivity{
		UserID:            firstNonEmpty(string(w.UserID), id),
		ReportsCount:      int(max(w.ReportsCount, w.TotalReports)),
		MatchesCount:      int(max(w.MatchesCount, w.TotalMatches)),
		SuccessfulMatches: int(w.SuccessfulMatches),
		LastActiveAt:      w.LastActiveAt.ptr(),
	}, nil
}
