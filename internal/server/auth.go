package server

import (
	"context"
	"crypto/hmac"
	"errors"
	"net/http"
	"strings"

	"github.com/lostfound/admin-console/internal/admin"
	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/prefs"
)

const sessionCookieName = "console_session"

// sessionValue is the cookie value that proves a browser signed in with
// token. It changes whenever the token does, so a new login or a logout
// invalidates every older cookie.
func (s *Server) sessionValue(token string) string {
	return sign([]byte(s.config.SessionSecret), []byte(token))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.sessionValue(token),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   s.secureCookies(),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   s.secureCookies(),
	})
}

func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.config.BaseURL, "https://")
}

// endSession forgets the stored token and everything shown under it.
func (s *Server) endSession(ctx context.Context, token string) {
	if err := s.prefs.SetAuthToken(ctx, ""); err != nil {
		s.logger.Error("clear auth token", "error", err)
	}
	if token != "" {
		s.api.ForgetUser(token)
	}
	s.ws.Reset()
}

// SessionMiddleware resolves the operator behind the session cookie and
// puts it in the request context. A token the API no longer accepts ends
// the session.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := s.prefs.AuthToken()
		if token == "" || !hmac.Equal([]byte(c.Value), []byte(s.sessionValue(token))) {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.api.CurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrSessionExpired) {
				s.logger.Info("session ended by API", "error", err)
				s.endSession(r.Context(), token)
				s.clearSessionCookie(w)
			} else {
				s.logger.Error("resolve current user", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), &user)))
	})
}

// RequireAuth redirects unauthenticated requests to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/auth/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin returns 403 unless the operator has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || user.Role != model.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleLogin renders the login page.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	s.render(w, r, "login.html", map[string]interface{}{"Error": "", "Email": ""})
}

// HandleLoginSubmit exchanges the posted credentials for a token. Only
// admin accounts may sign in to the console.
func (s *Server) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	fail := func(status int, msg string) {
		w.WriteHeader(status)
		s.render(w, r, "login.html", map[string]interface{}{"Error": msg, "Email": email})
	}

	if email == "" || password == "" {
		fail(http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := s.api.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.logger.Info("login rejected", "email", email)
			fail(http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.logger.Error("login", "email", email, "error", err)
		fail(http.StatusBadGateway, "Could not reach the server. Please try again.")
		return
	}

	// The signed-in operator's session stays untouched until the new account
	// is known to be an admin.
	user := res.User
	if user.ID == "" {
		if user, err = s.api.CurrentUser(r.Context(), res.Token); err != nil {
			s.logger.Error("resolve user after login", "email", email, "error", err)
			s.api.ForgetUser(res.Token)
			fail(http.StatusBadGateway, "Could not reach the server. Please try again.")
			return
		}
	}
	if user.Role != model.RoleAdmin {
		s.logger.Info("login refused for non-admin", "email", email, "role", user.Role)
		s.api.ForgetUser(res.Token)
		fail(http.StatusForbidden, "This account does not have admin access")
		return
	}

	previous := s.prefs.AuthToken()
	if err := s.prefs.SetAuthToken(r.Context(), res.Token); err != nil {
		s.logger.Error("store auth token", "error", err)
		s.api.ForgetUser(res.Token)
		fail(http.StatusInternalServerError, "Could not save the session")
		return
	}
	if previous != "" && previous != res.Token {
		s.api.ForgetUser(previous)
	}

	// A new operator starts from clean screens.
	s.ws.Reset()
	s.setSessionCookie(w, res.Token)
	s.logger.Info("operator signed in", "user_id", user.ID, "email", user.Email)
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// HandleLogout ends the session.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.endSession(r.Context(), s.prefs.AuthToken())
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

// HandleSettings renders the preferences page.
func (s *Server) HandleSettings(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "settings.html", map[string]interface{}{
		"Screen":  "settings",
		"Locales": prefs.Supported,
		"Current": s.prefs.Locale().String(),
		"Saved":   r.URL.Query().Get("saved") == "1",
	})
}

// HandleSettingsSubmit stores the locale and dark mode preferences.
func (s *Server) HandleSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag, err := s.prefs.SetLocale(ctx, r.FormValue("locale"))
	if err == nil {
		err = s.prefs.SetDarkMode(ctx, r.FormValue("dark_mode") == "on")
	}
	if err != nil {
		s.logger.Error("save settings", "error", err)
		http.Error(w, "Could not save settings", http.StatusInternalServerError)
		return
	}
	s.logger.Info("settings saved", "locale", tag.String())
	http.Redirect(w, r, "/settings?saved=1", http.StatusFound)
}

// render executes a page outside the admin screens with the shared chrome.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	page := admin.Chrome(s.prefs)
	page["Screen"] = ""
	for k, v := range data {
		page[k] = v
	}
	page["User"] = UserFromContext(r.Context())
	page["CSRFToken"] = CSRFTokenFromContext(r.Context())

	if err := s.templates.ExecuteTemplate(w, name, page); err != nil {
		s.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
