package converge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/domain"
	"bricksync/internal/testutil"
)

// fakeClock advances only when the waiter sleeps.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func newTestWaiter(gen domain.ProjectionGenerator, cfg PollingConfig) (*Waiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewWaiter(WaiterDeps{Generator: gen, Polling: cfg})
	w.now = clock.now
	w.sleep = clock.sleep
	return w, clock
}

var tableName = domain.MustParseFQTN("main.sales.orders")

func TestEnsureFresh_AlreadyFresh(t *testing.T) {
	gen := &testutil.MockProjectionGenerator{
		LatestVersionFn: func(context.Context, domain.FQTN) (int64, error) { return 7, nil },
	}
	w, clock := newTestWaiter(gen, PollingConfig{})
	current := &domain.UniformMetadata{MetadataLocation: "s3://x/v7.metadata.json", ConvertedVersion: 7}

	got, err := w.EnsureFresh(context.Background(), tableName, current)
	require.NoError(t, err)
	assert.Same(t, current, got)
	assert.Empty(t, clock.sleeps)
}

func TestEnsureFresh_PollsWithDoublingBackoff(t *testing.T) {
	polls := 0
	triggered := false
	gen := &testutil.MockProjectionGenerator{
		LatestVersionFn: func(context.Context, domain.FQTN) (int64, error) { return 10, nil },
		TriggerProjectionFn: func(context.Context, domain.FQTN) error {
			triggered = true
			return nil
		},
		GetUniformMetadataFn: func(context.Context, domain.FQTN) (*domain.UniformMetadata, error) {
			polls++
			if polls < 4 {
				return &domain.UniformMetadata{ConvertedVersion: 8}, nil
			}
			return &domain.UniformMetadata{MetadataLocation: "s3://x/v10.metadata.json", ConvertedVersion: 10}, nil
		},
	}
	var waited time.Duration
	w, clock := newTestWaiter(gen, PollingConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Timeout: time.Minute})
	w.onWait = func(d time.Duration) { waited = d }

	got, err := w.EnsureFresh(context.Background(), tableName, &domain.UniformMetadata{ConvertedVersion: 8})
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, int64(10), got.ConvertedVersion)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, clock.sleeps)
	assert.Equal(t, 9*time.Second, waited)
}

func TestEnsureFresh_Timeout(t *testing.T) {
	gen := &testutil.MockProjectionGenerator{
		LatestVersionFn:     func(context.Context, domain.FQTN) (int64, error) { return 5, nil },
		TriggerProjectionFn: func(context.Context, domain.FQTN) error { return nil },
		GetUniformMetadataFn: func(context.Context, domain.FQTN) (*domain.UniformMetadata, error) {
			return &domain.UniformMetadata{ConvertedVersion: 4}, nil
		},
	}
	w, clock := newTestWaiter(gen, PollingConfig{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, Timeout: 10 * time.Second})

	_, err := w.EnsureFresh(context.Background(), tableName, nil)
	require.Error(t, err)
	var te *domain.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "main.sales.orders", te.Name)
	assert.Equal(t, int64(5), te.TargetVersion)
	assert.Equal(t, int64(4), te.LastObservedVersion)
	assert.Equal(t, 10*time.Second, te.Elapsed)
	// 1 + 2 + 4 + 3 (clamped to the remaining budget)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 3 * time.Second}, clock.sleeps)
}

func TestEnsureFresh_Cancelled(t *testing.T) {
	gen := &testutil.MockProjectionGenerator{
		LatestVersionFn:     func(context.Context, domain.FQTN) (int64, error) { return 5, nil },
		TriggerProjectionFn: func(context.Context, domain.FQTN) error { return nil },
	}
	w, _ := newTestWaiter(gen, PollingConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	w.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := w.EnsureFresh(ctx, tableName, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnsureFresh_RealSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := sleepContext(ctx, time.Hour)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFreshen_RefreshesProjectedTablesOnly(t *testing.T) {
	gen := &testutil.MockProjectionGenerator{
		LatestVersionFn:     func(context.Context, domain.FQTN) (int64, error) { return 2, nil },
		TriggerProjectionFn: func(context.Context, domain.FQTN) error { return nil },
		GetUniformMetadataFn: func(context.Context, domain.FQTN) (*domain.UniformMetadata, error) {
			return &domain.UniformMetadata{MetadataLocation: "s3://x/v2.metadata.json", ConvertedVersion: 2}, nil
		},
	}
	w, _ := newTestWaiter(gen, PollingConfig{})

	projected := &domain.TableSource{
		Ident:        domain.MustParseFQTN("c.s.p"),
		NativeFormat: domain.FormatDelta,
		Format:       domain.FormatIceberg,
		Uniform:      &domain.UniformMetadata{MetadataLocation: "s3://x/v1.metadata.json", ConvertedVersion: 1},
	}
	plain := &domain.TableSource{Ident: domain.MustParseFQTN("c.s.d"), NativeFormat: domain.FormatDelta, Format: domain.FormatDelta}
	view := &domain.ViewSource{Ident: domain.MustParseFQTN("c.s.v"), ObjectKind: domain.KindView, BaseTables: []domain.Source{projected, plain}}

	got, err := Freshen(context.Background(), w, view)
	require.NoError(t, err)
	v := got.(*domain.ViewSource)
	assert.NotSame(t, view, v)
	assert.Equal(t, "s3://x/v2.metadata.json", v.BaseTables[0].(*domain.TableSource).MetadataLocation())
	assert.Same(t, plain, v.BaseTables[1])
	assert.Equal(t, int64(1), projected.Uniform.ConvertedVersion, "input is not mutated")

	same, err := Freshen(context.Background(), nil, view)
	require.NoError(t, err)
	assert.Same(t, view, same)
}
