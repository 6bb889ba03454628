package admin

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/screens"
)

const reportsPath = "/admin/reports"

// HandleReports renders the reports list. Visiting the list closes any open
// report modal.
func (h *AdminHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Reports
	s.Detail.Close()
	navigate(r.Context(), s.Controller, r, screens.ReportFilterKeys, h.takeSettled(reportsPath))
	h.renderReports(w, r)
}

// HandleReportDetail opens the report modal over the current list.
func (h *AdminHandler) HandleReportDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	loadIfIdle(r.Context(), h.ws.Reports.Controller, r, screens.ReportFilterKeys)
	if err := h.ws.Reports.Detail.Open(r.Context(), id); err != nil {
		h.logger.Error("load report detail", "report_id", id, "error", err)
	}
	h.renderReports(w, r)
}

func (h *AdminHandler) renderReports(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "reports.html", screens.ScreenReports, map[string]interface{}{
		"View":   h.ws.Reports.Snapshot(),
		"Detail": h.ws.Reports.Detail.Snapshot(),
		"Base":   reportsPath,
		"BulkActions": []string{
			string(model.ReportApproved),
			string(model.ReportRejected),
			string(model.ReportHidden),
			"delete",
		},
	})
}

// HandleReportStatus moves one report to the posted status.
func (h *AdminHandler) HandleReportStatus(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Reports
	id := chi.URLParam(r, "reportID")
	status, ok := model.ParseReportStatus(r.FormValue("status"))
	if !ok {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := s.SetStatus(r.Context(), id, status); err != nil {
		h.setFlash(screens.ScreenReports, flash{Error: actionError("Failed to update report", err)})
	} else {
		h.setFlash(screens.ScreenReports, flash{Notice: fmt.Sprintf("Report marked %s", status)})
	}
	h.redirectTo(w, r, reportsPath, s.Query())
}

// HandleReportDelete deletes one report.
func (h *AdminHandler) HandleReportDelete(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Reports
	id := chi.URLParam(r, "reportID")

	if err := s.Delete(r.Context(), id); err != nil {
		h.setFlash(screens.ScreenReports, flash{Error: actionError("Failed to delete report", err)})
	} else {
		h.setFlash(screens.ScreenReports, flash{Notice: "Report deleted"})
	}
	h.redirectTo(w, r, reportsPath, s.Query())
}

// HandleReportsBulk applies the posted action to the posted selection.
func (h *AdminHandler) HandleReportsBulk(w http.ResponseWriter, r *http.Request) {
	s := h.ws.Reports
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	selectFromForm(s.Controller, r)

	action := r.FormValue("action")
	if action == "delete" {
		h.setFlash(screens.ScreenReports, bulkFlash("reports", s.BulkDelete(r.Context())))
		h.redirectTo(w, r, reportsPath, s.Query())
		return
	}

	status, ok := model.ParseReportStatus(action)
	if !ok {
		s.ClearSelection()
		http.Error(w, "Invalid bulk action", http.StatusBadRequest)
		return
	}
	res, err := s.BulkSetStatus(r.Context(), status)
	if err != nil {
		s.ClearSelection()
		h.setFlash(screens.ScreenReports, flash{Error: actionError("Bulk update failed", err)})
	} else {
		h.setFlash(screens.ScreenReports, bulkFlash("reports", res))
	}
	h.redirectTo(w, r, reportsPath, s.Query())
}
