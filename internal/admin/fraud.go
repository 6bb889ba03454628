package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/screens"
)

const (
	fraudPath = "/admin/fraud"
	auditPath = "/admin/audit"
)

// HandleFraud renders the fraud detection list.
func (h *AdminHandler) HandleFraud(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Fraud
	s.Detail.Close()
	navigate(r.Context(), s.Controller, r, screens.FraudFilterKeys, h.takeSettled(fraudPath))
	h.renderFraud(w, r)
}

// HandleFraudDetail opens the fraud analysis modal.
func (h *AdminHandler) HandleFraudDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fraudID")
	loadIfIdle(r.Context(), h.ws.Fraud.Controller, r, screens.FraudFilterKeys)
	if err := h.ws.Fraud.Detail.Open(r.Context(), id); err != nil {
		h.logger.Error("load fraud analysis", "fraud_id", id, "error", err)
	}
	h.renderFraud(w, r)
}

func (h *AdminHandler) renderFraud(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "fraud.html", screens.ScreenFraud, map[string]interface{}{
		"View":   h.ws.Fraud.Snapshot(),
		"Detail": h.ws.Fraud.Detail.Snapshot(),
		"Base":   fraudPath,
	})
}

// HandleFraudReview records a confirm or reject verdict with notes.
func (h *AdminHandler) HandleFraudReview(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Fraud
	id := chi.URLParam(r, "fraudID")
	verdict := r.FormValue("verdict")
	notes := r.FormValue("admin_notes")

	if err := s.Review(r.Context(), id, verdict, notes); err != nil {
		h.setFlash(screens.ScreenFraud, flash{Error: actionError("Failed to review fraud result", err)})
	} else {
		h.setFlash(screens.ScreenFraud, flash{Notice: "Fraud result " + verdict})
	}
	h.redirectTo(w, r, fraudPath, s.Query())
}

// HandleAudit renders the audit log.
func (h *AdminHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Audit
	s.Detail.Close()
	navigate(r.Context(), s.Controller, r, screens.AuditFilterKeys, h.takeSettled(auditPath))
	h.renderAudit(w, r)
}

// HandleAuditDetail opens one log entry.
func (h *AdminHandler) HandleAuditDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "logID")
	loadIfIdle(r.Context(), h.ws.Audit.Controller, r, screens.AuditFilterKeys)
	if err := h.ws.Audit.Detail.Open(r.Context(), id); err != nil {
		h.logger.Error("load audit entry", "log_id", id, "error", err)
	}
	h.renderAudit(w, r)
}

func (h *AdminHandler) renderAudit(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "audit.html", screens.ScreenAudit, map[string]interface{}{
		"View":   h.ws.Audit.Snapshot(),
		"Detail": h.ws.Audit.Detail.Snapshot(),
		"Base":   auditPath,
	})
}
