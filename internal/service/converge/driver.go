// Package converge applies planned targets to target catalogs and waits for
// asynchronous iceberg projections to catch up before planning.
package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bricksync/internal/domain"
)

// Outcome describes what Converge did to the top-level target.
type Outcome struct {
	Target   domain.FQTN
	Action   domain.Action
	Replaced bool // a stale pointer was recreated before refreshing
	Objects  int  // objects converged, bases included
}

// Driver is the only component that mutates target catalogs.
type Driver struct {
	target domain.TargetCatalog
	logger *slog.Logger
}

// NewDriver creates a Driver for one target catalog.
func NewDriver(target domain.TargetCatalog, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{target: target, logger: logger}
}

// Converge brings t and its base tables to their planned state. Bases
// converge first, in order, and the first failure stops the walk so that
// dependents are never touched after a base fails. Shared bases are applied
// once per call.
func (d *Driver) Converge(ctx context.Context, t *domain.Target) (Outcome, error) {
	out := Outcome{Target: t.Ident, Action: t.Action()}
	done := make(map[string]bool)
	replaced, err := d.converge(ctx, t, done)
	out.Replaced = replaced
	out.Objects = len(done)
	return out, err
}

func (d *Driver) converge(ctx context.Context, t *domain.Target, done map[string]bool) (bool, error) {
	k := strings.ToLower(t.Ident.String())
	if done[k] {
		return false, nil
	}
	for _, b := range t.BaseTables {
		if _, err := d.converge(ctx, b, done); err != nil {
			return false, fmt.Errorf("converge base %s of %s: %w", b.Ident, t.Ident, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var (
		replaced bool
		err      error
	)
	if t.Exists {
		replaced, err = d.refresh(ctx, t)
	} else {
		replaced, err = d.create(ctx, t)
	}
	if err != nil {
		return false, err
	}
	done[k] = true
	return replaced, nil
}

func (d *Driver) create(ctx context.Context, t *domain.Target) (bool, error) {
	if catalog, ok := t.Ident.CatalogPart(); ok {
		if err := ignoreConflict(d.target.CreateNamespace(ctx, catalog)); err != nil {
			return false, fmt.Errorf("create namespace %s: %w", catalog, err)
		}
	}
	if err := ignoreConflict(d.target.CreateSchema(ctx, t.Ident.Catalog, t.Ident.Schema)); err != nil {
		return false, fmt.Errorf("create schema %s.%s: %w", t.Ident.Catalog, t.Ident.Schema, err)
	}

	d.logger.Info("creating target", "target", t.Ident.String(), "kind", string(t.Kind))
	if err := d.target.ExecuteDDL(ctx, t); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			d.logger.Warn("target created concurrently, refreshing instead", "target", t.Ident.String())
			return d.refresh(ctx, t)
		}
		return false, fmt.Errorf("create %s: %w", t.Ident, err)
	}
	if t.RefreshAfterCreate {
		if err := d.target.ExecuteRefresh(ctx, t); err != nil {
			return false, fmt.Errorf("refresh %s after create: %w", t.Ident, err)
		}
	}
	return false, nil
}

func (d *Driver) refresh(ctx context.Context, t *domain.Target) (bool, error) {
	d.logger.Info("refreshing target", "target", t.Ident.String(), "kind", string(t.Kind))
	err := d.target.ExecuteRefresh(ctx, t)
	if err == nil {
		return false, nil
	}
	var stale *domain.StalePointerError
	if !errors.As(err, &stale) {
		return false, fmt.Errorf("refresh %s: %w", t.Ident, err)
	}

	d.logger.Warn("target points at a replaced table, recreating", "target", t.Ident.String(), "detail", stale.Message)
	if err := d.target.ExecuteReplace(ctx, t); err != nil {
		return false, fmt.Errorf("replace stale %s: %w", t.Ident, err)
	}
	if err := d.target.ExecuteRefresh(ctx, t); err != nil {
		return false, fmt.Errorf("refresh %s after replace: %w", t.Ident, err)
	}
	return true, nil
}

func ignoreConflict(err error) error {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}
