package syncrun

import (
	"context"
	"log/slog"
	"sync"

	"bricksync/internal/domain"
)

// RunFunc executes one run under the given ID.
type RunFunc func(ctx context.Context, runID string) (*domain.SyncReport, error)

// Launcher starts runs in the background, at most one at a time. Runs
// outlive the request that started them and stop when the launcher's
// context is cancelled.
type Launcher struct {
	ctx    context.Context
	run    RunFunc
	logger *slog.Logger
	newID  func() string

	mu     sync.Mutex
	active string
	wg     sync.WaitGroup
}

// NewLauncher creates a Launcher bound to ctx.
func NewLauncher(ctx context.Context, run RunFunc, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		ctx:    ctx,
		run:    run,
		logger: logger.With("component", "launcher"),
		newID:  domain.NewID,
	}
}

// Start begins a run and returns its ID. It fails with a
// *domain.ConflictError while another run is in progress.
func (l *Launcher) Start() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != "" {
		return "", domain.ErrConflict("run %s is still in progress", l.active)
	}
	id := l.newID()
	l.active = id
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.clear(id)
		report, err := l.run(l.ctx, id)
		if err != nil {
			l.logger.Error("background run failed", "run_id", id, "error", err)
			return
		}
		converged, skipped, failed := report.Counts()
		l.logger.Info("background run finished", "run_id", id,
			"converged", converged, "skipped", skipped, "failed", failed)
	}()
	return id, nil
}

// RunNow runs synchronously under a new ID, honoring the one-at-a-time
// rule. Scheduled runs use it so an overlapping tick is skipped.
func (l *Launcher) RunNow(ctx context.Context) (*domain.SyncReport, error) {
	l.mu.Lock()
	if l.active != "" {
		active := l.active
		l.mu.Unlock()
		return nil, domain.ErrConflict("run %s is still in progress", active)
	}
	id := l.newID()
	l.active = id
	l.wg.Add(1)
	l.mu.Unlock()

	defer l.wg.Done()
	defer l.clear(id)
	return l.run(ctx, id)
}

// Active returns the ID of the run in progress.
func (l *Launcher) Active() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.active != ""
}

// Wait blocks until every started run has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

func (l *Launcher) clear(id string) {
	l.mu.Lock()
	if l.active == id {
		l.active = ""
	}
	l.mu.Unlock()
}
