package web

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/Jobalyzer/internal/logging"
	"github.com/JonMunkholm/Jobalyzer/internal/web/templates"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListReports())
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleLegacyStats returns label/count objects, e.g.
// [{"state": "NC", "count": 12}].
func (s *Server) handleLegacyStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Records())
}

func (s *Server) handleReportIndex(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.ReportIndex(s.service.ListReports()))
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render(w, r, templates.ReportTable(report))
}

// render writes an HTML component. Render errors after the header is
// sent can only be logged.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}
