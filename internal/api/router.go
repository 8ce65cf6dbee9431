// Package api exposes run history, run triggering, health and metrics over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bricksync/internal/domain"
	"bricksync/internal/middleware"
	"bricksync/internal/ui"
)

// RunStarter launches background runs.
// Implemented by syncrun.Launcher.
type RunStarter interface {
	Start() (string, error)
	Active() (string, bool)
}

// Config holds the HTTP surface settings.
type Config struct {
	JWTSecret         string
	JWTIssuer         string
	RequestsPerSecond float64
	Burst             int
	CORSOrigins       []string
}

// Deps holds the collaborators of the router.
type Deps struct {
	History  domain.RunHistory
	Runs     RunStarter          // optional; POST /api/runs is not served without it
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	UI       *ui.Handler         // optional
	Logger   *slog.Logger
}

type handler struct {
	history domain.RunHistory
	runs    RunStarter
	logger  *slog.Logger
}

// NewRouter builds the HTTP handler. ctx bounds the rate limiter's
// background sweep.
func NewRouter(ctx context.Context, cfg Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &handler{history: deps.History, runs: deps.Runs, logger: logger.With("component", "api")}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var verifier middleware.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = middleware.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RequestsPerSecond,
				Burst:             cfg.Burst,
			}))
		}
		r.Get("/runs", h.listRuns)
		r.Get("/runs/active", h.activeRun)
		r.Get("/runs/{runID}", h.getRun)
		if h.runs != nil {
			r.With(middleware.RequireBearer(verifier, logger)).Post("/runs", h.startRun)
		}
	})

	if deps.UI != nil {
		r.Route("/ui", func(r chi.Router) { ui.MountRoutes(r, deps.UI) })
	}
	return r
}
