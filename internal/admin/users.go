package admin

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/screens"
)

const usersPath = "/admin/users"

// HandleUsers renders the user management page.
func (h *AdminHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	s.Detail.Close()
	navigate(r.Context(), s.Controller, r, screens.UserFilterKeys, h.takeSettled(usersPath))
	h.renderUsers(w, r)
}

// HandleUserDetail opens the user activity modal.
func (h *AdminHandler) HandleUserDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	loadIfIdle(r.Context(), h.ws.Users.Controller, r, screens.UserFilterKeys)
	if err := h.ws.Users.Detail.Open(r.Context(), id); err != nil {
		h.logger.Error("load user stats", "user_id", id, "error", err)
	}
	h.renderUsers(w, r)
}

func (h *AdminHandler) renderUsers(w http.ResponseWriter, r *http.Request) {
	detail := h.ws.Users.Detail.Snapshot()
	var detailUser model.User
	if detail.Open {
		detailUser, _ = h.ws.Users.Find(detail.ID)
	}
	h.render(w, r, "users.html", screens.ScreenUsers, map[string]interface{}{
		"View":       h.ws.Users.Snapshot(),
		"Detail":     detail,
		"DetailUser": detailUser,
		"Base":       usersPath,
		"Roles":      []model.Role{model.RoleUser, model.RoleModerator, model.RoleAdmin},
	})
}

// HandleCreateUser creates a user from the posted form.
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	u, err := s.Create(r.Context(), api.NewUser{
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
		DisplayName: r.FormValue("display_name"),
		Role:        model.Role(r.FormValue("role")),
	})
	if err != nil {
		h.setFlash(screens.ScreenUsers, flash{Error: actionError("Failed to create user", err)})
	} else {
		h.setFlash(screens.ScreenUsers, flash{Notice: fmt.Sprintf("User %s created", u.Email)})
	}
	h.redirectTo(w, r, usersPath, s.Query())
}

// HandleUserStatus activates or deactivates one user.
func (h *AdminHandler) HandleUserStatus(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	id := chi.URLParam(r, "userID")
	active, ok := parseActive(r.FormValue("status"))
	if !ok {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := s.SetActive(r.Context(), id, active); err != nil {
		h.setFlash(screens.ScreenUsers, flash{Error: actionError("Failed to update user", err)})
	} else {
		h.setFlash(screens.ScreenUsers, flash{Notice: "User " + activeWord(active)})
	}
	h.redirectTo(w, r, usersPath, s.Query())
}

// HandleUserRole changes one user's role.
func (h *AdminHandler) HandleUserRole(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	id := chi.URLParam(r, "userID")
	role := r.FormValue("role")

	if err := s.SetRole(r.Context(), id, role); err != nil {
		h.setFlash(screens.ScreenUsers, flash{Error: actionError("Failed to change role", err)})
	} else {
		h.setFlash(screens.ScreenUsers, flash{Notice: "Role changed to " + role})
	}
	h.redirectTo(w, r, usersPath, s.Query())
}

// HandleUserDelete deletes one user.
func (h *AdminHandler) HandleUserDelete(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	id := chi.URLParam(r, "userID")
	if me := h.getUser(r.Context()); me != nil && me.ID == id {
		h.setFlash(screens.ScreenUsers, flash{Error: "You cannot delete your own account"})
		h.redirectTo(w, r, usersPath, s.Query())
		return
	}

	if err := s.Delete(r.Context(), id); err != nil {
		h.setFlash(screens.ScreenUsers, flash{Error: actionError("Failed to delete user", err)})
	} else {
		h.setFlash(screens.ScreenUsers, flash{Notice: "User deleted"})
	}
	h.redirectTo(w, r, usersPath, s.Query())
}

// HandleUsersBulk activates or deactivates the posted selection.
func (h *AdminHandler) HandleUsersBulk(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Users
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	active, ok := parseActive(r.FormValue("action"))
	if !ok {
		http.Error(w, "Invalid bulk action", http.StatusBadRequest)
		return
	}
	selectFromForm(s.Controller, r)
	h.setFlash(screens.ScreenUsers, bulkFlash("users", s.BulkSetActive(r.Context(), active)))
	h.redirectTo(w, r, usersPath, s.Query())
}

func parseActive(v string) (active, ok bool) {
	switch v {
	case "active":
		return true, true
	case "inactive":
		return false, true
	}
	return false, false
}

func activeWord(active bool) string {
	if active {
		return "activated"
	}
	return "deactivated"
}
