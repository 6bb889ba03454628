package server

import (
	"context"

	"github.com/lostfound/admin-console/internal/model"
)

type contextKey int

const (
	ctxKeyUser contextKey = iota
	ctxKeyCSRFToken
	ctxKeyRequestID
)

func withUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFromContext returns the signed-in operator, or nil.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxKeyUser).(*model.User)
	return u
}

func withCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyCSRFToken, token)
}
