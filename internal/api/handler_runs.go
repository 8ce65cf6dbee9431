package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bricksync/internal/domain"
	"bricksync/internal/middleware"
)

const maxListLimit = 500

type runDetail struct {
	Run     domain.RunRecord    `json:"run"`
	Results []domain.SyncResult `json:"results"`
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, r, domain.ErrValidation("limit must be a positive integer, got %q", v))
			return
		}
		limit = min(n, maxListLimit)
	}
	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	run, err := h.history.GetRun(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results, err := h.history.ListResults(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.SyncResult{}
	}
	writeJSON(w, http.StatusOK, runDetail{Run: *run, Results: results})
}

func (h *handler) activeRun(w http.ResponseWriter, _ *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	id, ok := h.runs.Active()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "run_id": id})
}

func (h *handler) startRun(w http.ResponseWriter, r *http.Request) {
	id, err := h.runs.Start()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("run triggered", "run_id", id, "subject", middleware.SubjectFromContext(r.Context()),
		"request_id", middleware.RequestIDFromContext(r.Context()))
	w.Header().Set("Location", "/api/runs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}
