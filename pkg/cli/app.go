package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"bricksync/internal/config"
	"bricksync/internal/db"
	"bricksync/internal/db/repository"
	"bricksync/internal/domain"
	"bricksync/internal/metrics"
	"bricksync/internal/provider"
	"bricksync/internal/service/syncrun"
	"bricksync/internal/sqldialect"
)

// app carries the resolved global flags and shared collaborators of one
// invocation.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string

	stdout    io.Writer
	stderr    io.Writer
	factories map[domain.ProviderKind]provider.Factory

	level  slog.LevelVar
	logger *slog.Logger
}

func (a *app) initLogger() error {
	format := a.logFormat
	if format == "" {
		format = "json"
		if f, ok := a.stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
			format = "text"
		}
	}
	a.level.Set(config.SlogLevel(a.logLevel))
	opts := &slog.HandlerOptions{Level: &a.level}
	switch format {
	case "text":
		a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
	case "json":
		a.logger = slog.New(slog.NewJSONHandler(a.stderr, opts))
	default:
		return fmt.Errorf("unsupported log format %q: use 'text' or 'json'", format)
	}
	return nil
}

func (a *app) path() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultPath()
}

// loadConfig reads the config file. The config's log_level applies unless
// --log-level was given.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.path())
	if err != nil {
		return nil, err
	}
	if a.logLevel == "" {
		a.level.Set(config.SlogLevel(cfg.LogLevel))
	}
	return cfg, nil
}

// env is everything a run needs, opened from one config.
type env struct {
	cfg       *config.Config
	runCfg    syncrun.Config
	registry  *provider.Registry
	historyDB *sql.DB
	runs      *repository.RunRepo
	gatherer  *prometheus.Registry
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// openEnv builds and connects the providers and opens the run history.
// With connect unset, non-lazy providers are left for first use.
func (a *app) openEnv(ctx context.Context, cfg *config.Config, connect bool) (*env, error) {
	runCfg, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}
	reg := provider.NewRegistry(a.factories, a.logger)
	if err := reg.Build(cfg.Providers); err != nil {
		return nil, err
	}
	if connect {
		if err := reg.ConnectAll(ctx); err != nil {
			_ = reg.Close()
			return nil, err
		}
	}

	e := &env{cfg: cfg, runCfg: runCfg, registry: reg, logger: a.logger}
	e.gatherer, e.metrics = metrics.NewRegistry()
	if cfg.History.Path != "-" {
		e.historyDB, err = db.OpenHistory(cfg.History.Path)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		e.runs = repository.NewRunRepo(e.historyDB)
	}
	return e, nil
}

// orchestrator returns an orchestrator for one run. An empty runID lets
// the orchestrator pick one.
func (e *env) orchestrator(runID string) *syncrun.Orchestrator {
	deps := syncrun.Deps{
		Providers: e.registry,
		Converter: sqldialect.NewConverter(),
		Observer:  e.metrics,
		Logger:    e.logger,
	}
	if e.runs != nil {
		deps.Recorder = e.runs
	}
	if runID != "" {
		deps.NewID = func() string { return runID }
	}
	return syncrun.New(e.runCfg, deps)
}

func (e *env) run(ctx context.Context, runID string) (*domain.SyncReport, error) {
	return e.orchestrator(runID).Run(ctx, e.cfg.Syncs)
}

func (e *env) Close() error {
	var errs []error
	errs = append(errs, e.registry.Close())
	if e.historyDB != nil {
		errs = append(errs, e.historyDB.Close())
	}
	return errors.Join(errs...)
}

// errSyncFailed is returned after a report with failed results has been
// printed.
var errSyncFailed = errors.New("one or more syncs failed")
