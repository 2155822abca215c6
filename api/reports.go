package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/empire-ui/report-ocr-service/internal/auth"
	"github.com/empire-ui/report-ocr-service/internal/db"
	"github.com/empire-ui/report-ocr-service/internal/models"
	"github.com/empire-ui/report-ocr-service/internal/render"
)

// ReportSummary is one entry of the report listing
type ReportSummary struct {
	ID        string    `json:"id"`
	PageCount int       `json:"pageCount"`
	Partial   bool      `json:"partial"`
	CreatedAt time.Time `json:"createdAt"`
}

// reportWithPages adds archived page links to a stored report
type reportWithPages struct {
	*models.StoredReport
	Pages []string `json:"pages,omitempty"`
}

// ListReports returns the caller's reports, newest first
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.store == nil {
		h.sendError(w, http.StatusServiceUnavailable, "Report storage not configured", "")
		return
	}

	limit := db.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "Invalid limit", v)
			return
		}
		limit = n
	}

	reports, err := h.store.List(r.Context(), auth.SubjectFromContext(r.Context()), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list reports")
		h.sendError(w, http.StatusInternalServerError, "Failed to list reports", err.Error())
		return
	}

	summaries := make([]ReportSummary, 0, len(reports))
	for _, rep := range reports {
		summaries = append(summaries, ReportSummary{
			ID:        rep.ID,
			PageCount: rep.PageCount,
			Partial:   rep.Partial,
			CreatedAt: rep.CreatedAt,
		})
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// GetReport returns a stored report with links to its archived pages
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	resp := reportWithPages{StoredReport: report}
	if h.archive != nil {
		pages, err := h.archive.PageURLs(r.Context(), report.ID, report.CreatedAt)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("report_id", report.ID).Msg("failed to list archived pages")
		} else {
			resp.Pages = pages
		}
	}

	json.NewEncoder(w).Encode(resp)
}

// DownloadReport exports a stored report as text, markdown, html or json
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Unsupported format", err.Error())
		return
	}

	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	doc := &models.ReportResponse{
		ID:       report.ID,
		Text:     report.Text,
		Analyses: report.Analyses,
		Partial:  report.Partial,
	}
	if err := render.Render(w, format, doc); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("report_id", report.ID).Msg("failed to render report")
	}
}

// ReviewReport runs the report validator on a stored report
func (h *Handler) ReviewReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	json.NewEncoder(w).Encode(h.validator.Validate(&models.ReportResponse{
		ID:       report.ID,
		Text:     report.Text,
		Analyses: report.Analyses,
		Partial:  report.Partial,
	}))
}

// loadReport fetches the report named in the URL and enforces ownership.
// It writes the error response itself and reports whether to continue.
func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (*models.StoredReport, bool) {
	if h.store == nil {
		h.sendError(w, http.StatusServiceUnavailable, "Report storage not configured", "")
		return nil, false
	}

	reportID := mux.Vars(r)["id"]
	report, err := h.store.Get(r.Context(), reportID)
	if errors.Is(err, db.ErrNotFound) {
		h.sendError(w, http.StatusNotFound, "Report not found", "")
		return nil, false
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("report_id", reportID).Msg("failed to load report")
		h.sendError(w, http.StatusInternalServerError, "Failed to load report", err.Error())
		return nil, false
	}

	// Reports created with a token are visible to the same subject only
	if report.Owner != "" && report.Owner != auth.SubjectFromContext(r.Context()) {
		h.sendError(w, http.StatusNotFound, "Report not found", "")
		return nil, false
	}
	return report, true
}
