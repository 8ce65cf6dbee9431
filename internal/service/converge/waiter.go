package converge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bricksync/internal/domain"
)

// Polling defaults.
const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultTimeout        = 300 * time.Second
)

// PollingConfig bounds the projection wait.
type PollingConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

func (c PollingConfig) withDefaults() PollingConfig {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// WaiterDeps holds dependencies for Waiter.
type WaiterDeps struct {
	Generator domain.ProjectionGenerator
	Polling   PollingConfig
	Logger    *slog.Logger
	// OnWait is called with the time spent waiting for each projection.
	OnWait func(time.Duration)
}

// Waiter regenerates stale iceberg projections and waits for them with a
// doubling backoff.
type Waiter struct {
	gen    domain.ProjectionGenerator
	cfg    PollingConfig
	logger *slog.Logger
	onWait func(time.Duration)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWaiter creates a Waiter.
func NewWaiter(deps WaiterDeps) *Waiter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Waiter{
		gen:    deps.Generator,
		cfg:    deps.Polling.withDefaults(),
		logger: logger,
		onWait: deps.OnWait,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EnsureFresh returns projection metadata that is at least as new as the
// table's latest version. A stale projection is regenerated and polled
// until it catches up, the timeout elapses (*domain.TimeoutError), or ctx
// is cancelled.
func (w *Waiter) EnsureFresh(ctx context.Context, name domain.FQTN, current *domain.UniformMetadata) (*domain.UniformMetadata, error) {
	latest, err := w.gen.LatestVersion(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("latest version of %s: %w", name, err)
	}
	if !current.IsStaleFor(latest) {
		return current, nil
	}

	w.logger.Info("regenerating iceberg projection", "table", name.String(), "latest_version", latest)
	if err := w.gen.TriggerProjection(ctx, name); err != nil {
		return nil, fmt.Errorf("trigger projection of %s: %w", name, err)
	}

	start := w.now()
	defer func() {
		if w.onWait != nil {
			w.onWait(w.now().Sub(start))
		}
	}()

	var observed int64 = -1
	if current != nil {
		observed = current.ConvertedVersion
	}
	backoff := w.cfg.InitialBackoff
	for {
		elapsed := w.now().Sub(start)
		if elapsed >= w.cfg.Timeout {
			return nil, &domain.TimeoutError{
				Name:                name.String(),
				TargetVersion:       latest,
				LastObservedVersion: observed,
				Elapsed:             elapsed,
			}
		}
		wait := backoff
		if remaining := w.cfg.Timeout - elapsed; wait > remaining {
			wait = remaining
		}
		if err := w.sleep(ctx, wait); err != nil {
			return nil, err
		}

		u, err := w.gen.GetUniformMetadata(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("poll projection of %s: %w", name, err)
		}
		if u != nil {
			observed = u.ConvertedVersion
			if !u.IsStaleFor(latest) {
				w.logger.Debug("iceberg projection caught up", "table", name.String(), "version", observed)
				return u, nil
			}
		}

		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}
}

// Freshen returns a copy of src in which every table synced through its
// iceberg projection carries fresh projection metadata. Other sources are
// returned as they are. A nil waiter leaves src unchanged.
func Freshen(ctx context.Context, w *Waiter, src domain.Source) (domain.Source, error) {
	if w == nil {
		return src, nil
	}
	return freshen(ctx, w, src, make(map[domain.Source]domain.Source))
}

func freshen(ctx context.Context, w *Waiter, src domain.Source, seen map[domain.Source]domain.Source) (domain.Source, error) {
	if got, ok := seen[src]; ok {
		return got, nil
	}
	var out domain.Source = src
	switch s := src.(type) {
	case *domain.TableSource:
		if s.NativeFormat == domain.FormatDelta && s.Format == domain.FormatIceberg {
			u, err := w.EnsureFresh(ctx, s.Ident, s.Uniform)
			if err != nil {
				return nil, err
			}
			if u != s.Uniform {
				out = s.WithUniform(u)
			}
		}
	case *domain.ViewSource:
		var bases []domain.Source
		changed := false
		for _, b := range s.BaseTables {
			fb, err := freshen(ctx, w, b, seen)
			if err != nil {
				return nil, err
			}
			changed = changed || fb != b
			bases = append(bases, fb)
		}
		if changed {
			cp := *s
			cp.BaseTables = bases
			out = &cp
		}
	}
	seen[src] = out
	return out, nil
}
