package admin

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/screens"
)

const matchesPath = "/admin/matches"

// HandleMatches renders the matches list.
func (h *AdminHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Matches
	s.Detail.Close()
	settled := h.takeSettled(matchesPath)
	if !h.liveReload(r, screens.ScreenMatches) {
		navigate(r.Context(), s.Controller, r, screens.MatchFilterKeys, settled)
	}
	h.renderMatches(w, r)
}

// HandleMatchDetail opens the matching analysis modal.
func (h *AdminHandler) HandleMatchDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	loadIfIdle(r.Context(), h.ws.Matches.Controller, r, screens.MatchFilterKeys)
	if err := h.ws.Matches.Detail.Open(r.Context(), id); err != nil {
		h.logger.Error("load matching analysis", "match_id", id, "error", err)
	}
	h.renderMatches(w, r)
}

func (h *AdminHandler) renderMatches(w http.ResponseWriter, r *http.Request) {
	every := h.ws.Matches.Realtime.Interval()
	h.liveRefresh(w, screens.ScreenMatches, every, liveURL(matchesPath, h.ws.Matches.Query()))
	h.render(w, r, "matches.html", screens.ScreenMatches, map[string]interface{}{
		"View":     h.ws.Matches.Snapshot(),
		"Detail":   h.ws.Matches.Detail.Snapshot(),
		"Base":     matchesPath,
		"Realtime": h.ws.Realtime(screens.ScreenMatches),
		"Interval": every,
		"Toggle":   matchesPath + "/realtime",
	})
}

// HandleMatchStatus promotes or suppresses one match.
func (h *AdminHandler) HandleMatchStatus(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Matches
	id := chi.URLParam(r, "matchID")
	status, ok := model.ParseMatchStatus(r.FormValue("status"))
	if !ok {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := s.SetStatus(r.Context(), id, status); err != nil {
		h.setFlash(screens.ScreenMatches, flash{Error: actionError("Failed to update match", err)})
	} else {
		h.setFlash(screens.ScreenMatches, flash{Notice: fmt.Sprintf("Match %s", status)})
	}
	h.redirectTo(w, r, matchesPath, s.Query())
}

// HandleMatchesTrigger runs matching for every report.
func (h *AdminHandler) HandleMatchesTrigger(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Matches
	run, err := s.TriggerAll(r.Context())
	if err != nil {
		h.setFlash(screens.ScreenMatches, flash{Error: actionError("Failed to trigger matching", err)})
	} else {
		msg := fmt.Sprintf("Matching finished: %d new matches", run.MatchesCreated)
		if run.Message != "" {
			msg = run.Message
		}
		h.setFlash(screens.ScreenMatches, flash{Notice: msg})
	}
	h.redirectTo(w, r, matchesPath, s.Query())
}

// HandleMatchesClear deletes every match. The form must confirm.
func (h *AdminHandler) HandleMatchesClear(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Matches
	if r.FormValue("confirm") != "yes" {
		h.setFlash(screens.ScreenMatches, flash{Error: "Clearing all matches needs confirmation"})
		h.redirectTo(w, r, matchesPath, s.Query())
		return
	}
	if err := s.ClearAll(r.Context()); err != nil {
		h.setFlash(screens.ScreenMatches, flash{Error: actionError("Failed to clear matches", err)})
	} else {
		h.setFlash(screens.ScreenMatches, flash{Notice: "All matches cleared"})
	}
	h.redirectTo(w, r, matchesPath, s.Query())
}
