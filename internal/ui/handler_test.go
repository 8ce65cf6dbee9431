package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
)

type fakeHistory struct {
	runs    []domain.RunRecord
	results map[string][]domain.SyncResult
	limit   int
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	f.limit = limit
	return f.runs, nil
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (*domain.RunRecord, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, domain.ErrNotFound("run %q not found", id)
}

func (f *fakeHistory) ListResults(_ context.Context, runID string) ([]domain.SyncResult, error) {
	return f.results[runID], nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/ui", func(r chi.Router) { MountRoutes(r, h) })
	return r
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sampleHistory() *fakeHistory {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	return &fakeHistory{
		runs: []domain.RunRecord{
			{ID: "run-1", StartedAt: started, FinishedAt: &finished, Status: domain.RunFailed, Converged: 1, Failed: 1},
		},
		results: map[string][]domain.SyncResult{
			"run-1": {
				{SourceName: "main.sales.orders", Target: "lake.sales.orders", Status: domain.StatusConverged, Action: domain.ActionCreate, Duration: 1500 * time.Millisecond},
				{SourceName: "main.sales.v_orders", Status: domain.StatusFailed, ErrorDetail: "view body <unsupported>"},
			},
		},
	}
}

func TestRunsList(t *testing.T) {
	h := NewHandler(sampleHistory(), nil)
	rec := get(t, newTestRouter(h), "/ui/runs")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `href="/ui/runs/run-1"`)
	assert.Contains(t, body, "label-danger")
	assert.Contains(t, body, "data-bind")
	assert.Contains(t, body, "2026-03-01T10:00:00Z")
}

func TestRunsList_Limit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"default", "", http.StatusOK, 50},
		{"explicit", "?limit=5", http.StatusOK, 5},
		{"capped", "?limit=100000", http.StatusOK, maxListLimit},
		{"invalid", "?limit=abc", http.StatusBadRequest, 0},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hist := sampleHistory()
			rec := get(t, newTestRouter(NewHandler(hist, nil)), "/ui/runs"+tc.query)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantLimit, hist.limit)
		})
	}
}

func TestRunsList_Empty(t *testing.T) {
	rec := get(t, newTestRouter(NewHandler(&fakeHistory{}, nil)), "/ui/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No sync runs have been recorded yet.")
}

func TestRunDetail(t *testing.T) {
	rec := get(t, newTestRouter(NewHandler(sampleHistory(), nil)), "/ui/runs/run-1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "main.sales.orders")
	assert.Contains(t, body, "lake.sales.orders")
	assert.Contains(t, body, "1.5s")
	assert.Contains(t, body, "view body &lt;unsupported&gt;")
}

func TestRunDetail_NotFound(t *testing.T) {
	rec := get(t, newTestRouter(NewHandler(sampleHistory(), nil)), "/ui/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Run not found")
}

func TestRootRedirectsAndStylesheet(t *testing.T) {
	router := newTestRouter(NewHandler(sampleHistory(), nil))

	rec := get(t, router, "/ui/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/ui/runs", rec.Header().Get("Location"))

	rec = get(t, router, "/ui/static/app.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/ui/static/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}
