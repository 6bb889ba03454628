// Package prefs holds the operator's console preferences (auth token,
// locale, dark mode) in memory, hydrated from the local database at startup
// and written through on every change.
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/text/language"
)

// Preference keys.
const (
	KeyAuthToken = "auth_token"
	KeyLocale    = "locale"
	KeyDarkMode  = "dark_mode"
)

// Supported lists the console locales; the first is the fallback.
var Supported = []language.Tag{language.English, language.Arabic, language.French}

var matcher = language.NewMatcher(Supported)

// Backend persists preferences.
type Backend interface {
	ListPreferences(ctx context.Context) (map[string]string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Store is the process-wide preference store. Reads are served from memory.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

// New returns an empty store. A nil backend keeps preferences in memory only.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger, values: make(map[string]string)}
}

// Hydrate replaces the in-memory values with everything persisted.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	values, err := s.backend.ListPreferences(ctx)
	if err != nil {
		return fmt.Errorf("hydrate preferences: %w", err)
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	s.logger.Info("preferences loaded", "count", len(values))
	return nil
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key, persisting it first.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.backend != nil {
		if err := s.backend.SetPreference(ctx, key, value); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Clear removes key.
func (s *Store) Clear(ctx context.Context, key string) error {
	if s.backend != nil {
		if err := s.backend.DeletePreference(ctx, key); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// AuthToken returns the stored bearer token, or "" when logged out.
func (s *Store) AuthToken() string {
	v, _ := s.Get(KeyAuthToken)
	return v
}

// SetAuthToken stores the bearer token; an empty token clears it.
func (s *Store) SetAuthToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx, KeyAuthToken)
	}
	return s.Set(ctx, KeyAuthToken, token)
}

// Locale returns the stored locale matched against Supported.
func (s *Store) Locale() language.Tag {
	v, _ := s.Get(KeyLocale)
	return MatchLocale(v)
}

// SetLocale matches raw against Supported and stores the result, which is
// returned. Unparseable or unsupported input stores English.
func (s *Store) SetLocale(ctx context.Context, raw string) (language.Tag, error) {
	tag := MatchLocale(raw)
	if err := s.Set(ctx, KeyLocale, tag.String()); err != nil {
		return tag, err
	}
	return tag, nil
}

// DarkMode reports whether dark mode is on.
func (s *Store) DarkMode() bool {
	v, _ := s.Get(KeyDarkMode)
	on, _ := strconv.ParseBool(v)
	return on
}

// SetDarkMode stores the dark mode flag.
func (s *Store) SetDarkMode(ctx context.Context, on bool) error {
	return s.Set(ctx, KeyDarkMode, strconv.FormatBool(on))
}

// MatchLocale picks the best supported locale for the given preferences,
// each a BCP 47 tag or an Accept-Language header. It falls back to English.
func MatchLocale(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Supported[0]
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Supported[0]
	}
	return Supported[idx]
}

// IsRTL reports whether tag is written right to left.
func IsRTL(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "ar"
}
