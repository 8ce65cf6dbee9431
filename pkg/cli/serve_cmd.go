package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"bricksync/internal/api"
	"bricksync/internal/domain"
	"bricksync/internal/service/syncrun"
	"bricksync/internal/ui"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history, metrics and run triggers over HTTP",
		Long: "Start the status server: GET /healthz, GET /metrics, GET /api/runs, " +
			"GET /api/runs/{id}, POST /api/runs and the /ui/runs pages. " +
			"With --schedule runs are also started on a cron schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), addr, schedule, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression to start runs on while serving")
	return cmd
}

// serve blocks until ctx is done. ready, when set, receives the bound
// address once the listener is open.
func (a *app) serve(ctx context.Context, addr, schedule string, ready chan<- string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "-" {
		return domain.ErrConfig("serve needs run history; set history.path")
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	e, err := a.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	launcher := syncrun.NewLauncher(ctx, e.run, a.logger)
	if schedule != "" {
		c, err := a.scheduleRuns(ctx, launcher, schedule)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	handler := api.NewRouter(ctx, api.Config{
		JWTSecret:         cfg.Server.JWTSecret,
		JWTIssuer:         cfg.Server.JWTIssuer,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
		CORSOrigins:       cfg.Server.CORSOrigins,
	}, api.Deps{
		History:  e.runs,
		Runs:     launcher,
		Gatherer: e.gatherer,
		UI:       ui.NewHandler(e.runs, a.logger),
		Logger:   a.logger,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.Server.JWTSecret == "" {
		a.logger.Warn("server.jwt_secret is not set; POST /api/runs is unauthenticated")
	}
	a.logger.Info("status server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		launcher.Wait()
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Warn("server shutdown", "error", err)
	}
	launcher.Wait()
	a.logger.Info("status server stopped")
	return nil
}
