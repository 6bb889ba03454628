package screens

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// UserFilterKeys are the query parameters the users list accepts. status is
// "active" or "inactive".
var UserFilterKeys = []string{"search", "role", "status"}

// ErrInvalidUser is returned when a new user fails local validation.
var ErrInvalidUser = errors.New("screens: invalid user")

const minPasswordLen = 8

// Users is the user management screen.
type Users struct {
	*listview.Controller[model.User, model.UserStats]
	Detail *listview.Detail[model.UserActivity]

	api API
	rec *recorder
}

func newUsers(a API, rec *recorder, o Options) *Users {
	src := listview.SourceFuncs[model.User, model.UserStats]{
		ListFunc: listFrom(a.GetUsers),
		StatsFunc: func(ctx context.Context, _ listview.Query) (model.UserStats, error) {
			s, err := a.GetStatistics(ctx)
			return s.Users, err
		},
	}
	s := &Users{
		Controller: listview.NewController(src, controllerOptions(o, "users", func(u model.User) string { return u.ID })),
		api:        a,
		rec:        rec,
	}
	s.Detail = listview.NewDetail(a.GetUserStats, o.Logger)
	return s
}

func activeAction(active bool) string {
	if active {
		return "activate"
	}
	return "deactivate"
}

// SetActive activates or deactivates one user.
func (s *Users) SetActive(ctx context.Context, id string, active bool) error {
	err := s.Transition(ctx, id, func(ctx context.Context, id string) error {
		return s.api.UpdateUser(ctx, id, api.UserPatch{IsActive: &active})
	})
	s.rec.transition(ctx, s.Name(), activeAction(active), id, err)
	return err
}

// SetRole changes one user's role. An unknown role or one equal to the
// row's current role is refused locally.
func (s *Users) SetRole(ctx context.Context, id, role string) error {
	r, ok := model.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrTransitionNotAllowed, role)
	}
	if u, found := s.Find(id); found && u.Role == r {
		return notAllowed("user", id, u.Role, r)
	}
	err := s.Transition(ctx, id, func(ctx context.Context, id string) error {
		return s.api.UpdateUser(ctx, id, api.UserPatch{Role: &r})
	})
	s.rec.transition(ctx, s.Name(), "role:"+string(r), id, err)
	return err
}

// Create validates and creates a user, then refetches the list.
func (s *Users) Create(ctx context.Context, u api.NewUser) (model.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if err := validateNewUser(u); err != nil {
		return model.User{}, err
	}

	created, err := s.api.CreateUser(ctx, u)
	id := created.ID
	if id == "" {
		id = u.Email
	}
	s.rec.transition(ctx, s.Name(), "create", id, err)
	_ = s.Refresh(ctx)
	if err != nil {
		return model.User{}, err
	}
	return created, nil
}

func validateNewUser(u api.NewUser) error {
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		return fmt.Errorf("%w: email %q is not a valid address", ErrInvalidUser, u.Email)
	}
	if len(u.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, minPasswordLen)
	}
	if _, ok := model.ParseRole(string(u.Role)); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	return nil
}

// Delete removes one user.
func (s *Users) Delete(ctx context.Context, id string) error {
	err := s.Transition(ctx, id, s.api.DeleteUser)
	s.rec.transition(ctx, s.Name(), "delete", id, err)
	return err
}

// BulkSetActive activates or deactivates every selected user.
func (s *Users) BulkSetActive(ctx context.Context, active bool) listview.BulkResult {
	res := s.Bulk(ctx, func(ctx context.Context, id string) error {
		return s.api.UpdateUser(ctx, id, api.UserPatch{IsActive: &active})
	})
	s.rec.bulk(ctx, s.Name(), activeAction(active), res)
	return res
}
