package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
	"bricksync/internal/metrics"
	"bricksync/internal/ui"
)

type fakeHistory struct {
	runs    []domain.RunRecord
	results map[string][]domain.SyncResult
	err     error
	limit   int
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	f.limit = limit
	return f.runs, f.err
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

type fakeStarter struct {
	active string
	next   string
}

func (f *fakeStarter) Start() (string, error) {
	if f.active != "" {
		return "", domain.ErrConflict("run %s is still in progress", f.active)
	}
	f.active = f.next
	return f.next, nil
}

func (f *fakeStarter) Active() (string, bool) { return f.active, f.active != "" }

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func newTestHistory() *fakeHistory {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &fakeHistory{
		runs: []domain.RunRecord{{ID: "run-1", StartedAt: started, Status: domain.RunSucceeded, Converged: 2}},
		results: map[string][]domain.SyncResult{
			"run-1": {{SourceName: "main.sales.orders", Target: "lake.sales.orders", Status: domain.StatusConverged, Action: domain.ActionRefresh}},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := NewRouter(t.Context(), Config{}, Deps{History: newTestHistory()})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "", http.StatusOK, 0},
		{"explicit limit", "?limit=3", http.StatusOK, 3},
		{"capped limit", "?limit=9999", http.StatusOK, maxListLimit},
		{"bad limit", "?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hist := newTestHistory()
			h := NewRouter(t.Context(), Config{}, Deps{History: hist})
			rec := do(t, h, http.MethodGet, "/api/runs"+tc.query, "")
			require.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantLimit, hist.limit)
			if tc.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Runs []domain.RunRecord `json:"runs"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Runs, 1)
			assert.Equal(t, "run-1", body.Runs[0].ID)
		})
	}
}

func TestListRuns_InternalErrorHidesDetail(t *testing.T) {
	hist := &fakeHistory{err: errors.New("disk I/O error")}
	h := NewRouter(t.Context(), Config{}, Deps{History: hist})
	rec := do(t, h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
}

func TestGetRun(t *testing.T) {
	h := NewRouter(t.Context(), Config{}, Deps{History: newTestHistory()})

	rec := do(t, h, http.MethodGet, "/api/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body runDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Run.ID)
	require.Len(t, body.Results, 1)
	assert.Equal(t, domain.ActionRefresh, body.Results[0].Action)

	rec = do(t, h, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `run \"missing\" not found`)
}

func TestStartRun(t *testing.T) {
	t.Run("not served without a starter", func(t *testing.T) {
		h := NewRouter(t.Context(), Config{}, Deps{History: newTestHistory()})
		rec := do(t, h, http.MethodPost, "/api/runs", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("open without a secret", func(t *testing.T) {
		starter := &fakeStarter{next: "run-2"}
		h := NewRouter(t.Context(), Config{}, Deps{History: newTestHistory(), Runs: starter})

		rec := do(t, h, http.MethodPost, "/api/runs", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"run_id":"run-2"}`, rec.Body.String())
		assert.Equal(t, "/api/runs/run-2", rec.Header().Get("Location"))

		rec = do(t, h, http.MethodGet, "/api/runs/active", "")
		assert.JSONEq(t, `{"active":true,"run_id":"run-2"}`, rec.Body.String())

		rec = do(t, h, http.MethodPost, "/api/runs", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bearer required with a secret", func(t *testing.T) {
		cfg := Config{JWTSecret: testSecret}
		valid := signToken(t, jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(time.Hour).Unix()})
		expired := signToken(t, jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(-time.Hour).Unix()})

		tests := []struct {
			name     string
			token    string
			wantCode int
		}{
			{"missing", "", http.StatusUnauthorized},
			{"garbage", "not-a-jwt", http.StatusUnauthorized},
			{"expired", expired, http.StatusUnauthorized},
			{"valid", valid, http.StatusAccepted},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				h := NewRouter(t.Context(), cfg, Deps{History: newTestHistory(), Runs: &fakeStarter{next: "run-3"}})
				rec := do(t, h, http.MethodPost, "/api/runs", tc.token)
				assert.Equal(t, tc.wantCode, rec.Code)
			})
		}

		h := NewRouter(t.Context(), cfg, Deps{History: newTestHistory(), Runs: &fakeStarter{next: "run-3"}})
		rec := do(t, h, http.MethodGet, "/api/runs", "")
		assert.Equal(t, http.StatusOK, rec.Code, "reads stay open")
	})
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(t.Context(), Config{RequestsPerSecond: 0.001, Burst: 1}, Deps{History: newTestHistory()})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code, "health is not limited")
}

func TestMetricsAndUI(t *testing.T) {
	reg, m := metrics.NewRegistry()
	m.ObserveRun(domain.RunSucceeded)
	hist := newTestHistory()
	h := NewRouter(t.Context(), Config{}, Deps{
		History:  hist,
		Gatherer: reg,
		UI:       ui.NewHandler(hist, nil),
	})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bricksync_runs_total{status="succeeded"} 1`)

	rec = do(t, h, http.MethodGet, "/ui/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")
}

func TestCORS(t *testing.T) {
	h := NewRouter(t.Context(), Config{CORSOrigins: []string{"https://ops.example.com"}}, Deps{History: newTestHistory()})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPStatusFromDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound("x"), http.StatusNotFound},
		{domain.ErrValidation("x"), http.StatusBadRequest},
		{domain.ErrConfig("x"), http.StatusBadRequest},
		{domain.ErrConflict("x"), http.StatusConflict},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, httpStatusFromDomainError(tc.err), "%T", tc.err)
	}
}
