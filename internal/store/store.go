package store

import (
	"context"
	"errors"

	"github.com/lostfound/admin-console/internal/model"
)

// ErrNotFound is returned when a key or row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for the admin console. The
// console owns no domain data; it keeps operator preferences and a journal
// of the actions it issued against the API.
type Store interface {
	// Preferences
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
	ListPreferences(ctx context.Context) (map[string]string, error)

	// Action journal
	RecordAction(ctx context.Context, action *model.ConsoleAction) error
	ListRecentActions(ctx context.Context, limit int) ([]*model.ConsoleAction, error)
}
