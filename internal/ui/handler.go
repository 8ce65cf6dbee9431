// Package ui renders the read-only HTML views of recorded sync runs.
package ui

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	gomponents "maragu.dev/gomponents"

	"bricksync/internal/db/repository"
	"bricksync/internal/domain"
)

const maxListLimit = 500

// Handler serves the run history pages.
type Handler struct {
	History domain.RunHistory
	logger  *slog.Logger
}

// NewHandler creates a Handler reading from history.
func NewHandler(history domain.RunHistory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{History: history, logger: logger.With("component", "ui")}
}

// MountRoutes registers the UI routes on r, which is expected to be mounted
// at /ui.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/static/app.css", serveStylesheet)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/runs", http.StatusFound)
	})
	r.Get("/runs", h.RunsList)
	r.Get("/runs/{runID}", h.RunDetail)
}

// RunsList renders the most recent runs.
func (h *Handler) RunsList(w http.ResponseWriter, r *http.Request) {
	limit := repository.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.renderServiceError(w, r, domain.ErrValidation("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}
	runs, err := h.History.ListRuns(r.Context(), limit)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, runsListPage(runRows(runs)))
}

// RunDetail renders one run with its per-object results.
func (h *Handler) RunDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	run, err := h.History.GetRun(r.Context(), id)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	results, err := h.History.ListResults(r.Context(), id)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, runDetailPage(runDetailPageData{Run: *run, Results: resultRows(results)}))
}

// renderServiceError maps history errors onto an error page. Storage
// failures are logged and shown without detail.
func (h *Handler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		renderHTML(w, http.StatusNotFound, errorPage("Run not found", notFound.Error()))
	case errors.As(err, &validation):
		renderHTML(w, http.StatusBadRequest, errorPage("Bad request", validation.Error()))
	default:
		h.logger.Error("render page", "path", r.URL.Path, "error", err)
		renderHTML(w, http.StatusInternalServerError,
			errorPage("History unavailable", "The run history could not be read. Check the server log."))
	}
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}
