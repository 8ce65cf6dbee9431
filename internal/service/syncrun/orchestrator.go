// Package syncrun runs sync definitions end to end: it validates them,
// expands each into work items, and drives every item through resolution,
// planning and convergence with bounded parallelism.
package syncrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bricksync/internal/domain"
	"bricksync/internal/service/converge"
	"bricksync/internal/service/source"
	"bricksync/internal/service/target"
)

// DefaultParallelism is the number of work items run at once.
const DefaultParallelism = 4

// ProviderLookup finds configured providers. Lookup must not connect;
// Get returns a connected provider.
// Implemented by provider.Registry.
type ProviderLookup interface {
	Lookup(name string) (domain.Provider, bool)
	Get(ctx context.Context, name string) (domain.Provider, error)
}

// Observer receives run telemetry.
// Implemented by metrics.Metrics.
type Observer interface {
	ObserveResult(r domain.SyncResult)
	ObserveRun(status domain.RunStatus)
	ObserveProjectionWait(d time.Duration)
}

// Config controls a run.
type Config struct {
	SkipFailures bool
	Parallelism  int
	Preference   domain.FormatPreference
	Strategy     domain.SyncStrategy
	Polling      converge.PollingConfig
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Providers ProviderLookup
	Converter domain.DialectConverter
	Recorder  domain.RunRecorder // optional
	Observer  Observer           // optional
	Logger    *slog.Logger
	NewID     func() string
}

// Orchestrator runs sync definitions.
type Orchestrator struct {
	cfg       Config
	providers ProviderLookup
	converter domain.DialectConverter
	recorder  domain.RunRecorder
	observer  Observer
	logger    *slog.Logger
	newID     func() string
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = DefaultParallelism
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := deps.NewID
	if newID == nil {
		newID = domain.NewID
	}
	return &Orchestrator{
		cfg:       cfg,
		providers: deps.Providers,
		converter: deps.Converter,
		recorder:  deps.Recorder,
		observer:  deps.Observer,
		logger:    logger,
		newID:     newID,
	}
}

// sourceDialect is implemented by source providers that also know the SQL
// dialect of their view definitions.
type sourceDialect interface {
	Dialect() domain.Dialect
}

// pipeline holds the services for one sync definition.
type pipeline struct {
	def      domain.SyncDefinition
	scope    domain.Scope
	reader   domain.CatalogReader
	resolver *source.Resolver
	waiter   *converge.Waiter
	planner  *target.Planner
	driver   *converge.Driver
}

type workItem struct {
	p    *pipeline
	name domain.FQTN
	err  error // set when the definition could not be expanded
}

// Validate checks every definition against the configured providers
// without contacting any catalog. Problems are reported as
// *domain.ConfigError.
func (o *Orchestrator) Validate(defs []domain.SyncDefinition) error {
	var errs []error
	for i, def := range defs {
		if err := o.validate(def); err != nil {
			errs = append(errs, fmt.Errorf("sync #%d (%s): %w", i+1, def.Source, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &domain.ConfigError{Message: errors.Join(errs...).Error()}
}

func (o *Orchestrator) validate(def domain.SyncDefinition) error {
	if _, err := domain.ParseScope(def.Source); err != nil {
		return err
	}
	src, ok := o.providers.Lookup(def.SourceProvider)
	if !ok {
		return domain.ErrConfig("unknown source provider %q", def.SourceProvider)
	}
	if _, ok := src.(domain.CatalogReader); !ok {
		return domain.ErrConfig("provider %q (%s) cannot be used as a source", src.Name(), src.Kind())
	}
	tgt, ok := o.providers.Lookup(def.TargetProvider)
	if !ok {
		return domain.ErrConfig("unknown target provider %q", def.TargetProvider)
	}
	if _, ok := tgt.(domain.TargetCatalog); !ok {
		return domain.ErrConfig("provider %q (%s) cannot be used as a target", tgt.Name(), tgt.Kind())
	}
	if _, err := target.NewNamer(o.cfg.Strategy, def.SourceConfiguration); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) build(ctx context.Context, def domain.SyncDefinition) (*pipeline, error) {
	scope, err := domain.ParseScope(def.Source)
	if err != nil {
		return nil, err
	}
	srcProv, err := o.providers.Get(ctx, def.SourceProvider)
	if err != nil {
		return nil, fmt.Errorf("connect source provider %s: %w", def.SourceProvider, err)
	}
	tgtProv, err := o.providers.Get(ctx, def.TargetProvider)
	if err != nil {
		return nil, fmt.Errorf("connect target provider %s: %w", def.TargetProvider, err)
	}
	reader, ok := srcProv.(domain.CatalogReader)
	if !ok {
		return nil, domain.ErrConfig("provider %q cannot be used as a source", def.SourceProvider)
	}
	tc, ok := tgtProv.(domain.TargetCatalog)
	if !ok {
		return nil, domain.ErrConfig("provider %q cannot be used as a target", def.TargetProvider)
	}
	namer, err := target.NewNamer(o.cfg.Strategy, def.SourceConfiguration)
	if err != nil {
		return nil, err
	}

	dialect := domain.DialectDatabricks
	if d, ok := srcProv.(sourceDialect); ok {
		dialect = d.Dialect()
	}
	uniform, _ := srcProv.(domain.UniformReader)

	var waiter *converge.Waiter
	if gen, ok := srcProv.(domain.ProjectionGenerator); ok {
		var onWait func(time.Duration)
		if o.observer != nil {
			onWait = o.observer.ObserveProjectionWait
		}
		waiter = converge.NewWaiter(converge.WaiterDeps{
			Generator: gen,
			Polling:   o.cfg.Polling,
			Logger:    o.logger,
			OnWait:    onWait,
		})
	}

	return &pipeline{
		def:    def,
		scope:  scope,
		reader: reader,
		resolver: source.NewResolver(source.ResolverDeps{
			Reader:     reader,
			Uniform:    uniform,
			Preference: o.cfg.Preference,
			Dialect:    dialect,
			Logger:     o.logger,
		}),
		waiter: waiter,
		planner: target.NewPlanner(target.PlannerDeps{
			Target:    tc,
			Converter: o.converter,
			Namer:     namer,
			Logger:    o.logger,
		}),
		driver: converge.NewDriver(tc, o.logger),
	}, nil
}

// expand builds a pipeline per definition and unpacks its scope into work
// items, in definition order. A definition that fails to expand becomes a
// single failed item.
func (o *Orchestrator) expand(ctx context.Context, defs []domain.SyncDefinition) []workItem {
	var items []workItem
	for _, def := range defs {
		p, err := o.build(ctx, def)
		if err == nil {
			var names []domain.FQTN
			names, err = source.Unpack(ctx, p.reader, p.scope)
			for _, n := range names {
				items = append(items, workItem{p: p, name: n})
			}
		}
		if err != nil {
			items = append(items, workItem{p: &pipeline{def: def}, err: err})
		}
	}
	return items
}

// Run executes defs and returns the results in work-item order. With
// SkipFailures unset the first failure cancels the remaining items. Items
// that never started or were cancelled in flight are left out of the report,
// and the failure is returned.
func (o *Orchestrator) Run(ctx context.Context, defs []domain.SyncDefinition) (*domain.SyncReport, error) {
	if err := o.Validate(defs); err != nil {
		return nil, err
	}

	report := &domain.SyncReport{RunID: o.newID(), Started: time.Now()}
	o.startRun(ctx, report)
	o.logger.Info("sync run started", "run_id", report.RunID, "definitions", len(defs))

	items := o.expand(ctx, defs)
	results := make([]*domain.SyncResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := o.runItem(gctx, it)
			if err != nil && cancelledBySibling(ctx, gctx, err) {
				o.logger.Debug("sync cancelled after an earlier failure", "source", res.SourceName)
				return nil
			}
			results[i] = &res
			o.recordResult(ctx, report.RunID, i, res)
			if err != nil && !o.cfg.SkipFailures {
				return fmt.Errorf("sync %s: %w", res.SourceName, err)
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, *r)
		}
	}
	report.Finished = time.Now()
	o.finishRun(ctx, report)
	return report, runErr
}

// cancelledBySibling reports whether err comes from the group context being
// cancelled by another item's failure rather than by the caller.
func cancelledBySibling(parent, group context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && group.Err() != nil && parent.Err() == nil
}

func (o *Orchestrator) runItem(ctx context.Context, it workItem) (domain.SyncResult, error) {
	start := time.Now()
	res := domain.SyncResult{SourceName: it.name.String()}
	if it.err != nil {
		res.SourceName = it.p.def.Source
	}
	fail := func(err error) (domain.SyncResult, error) {
		res.Status = domain.StatusFailed
		res.ErrorDetail = err.Error()
		res.Duration = time.Since(start)
		o.logger.Error("sync failed", "source", res.SourceName, "error", err)
		return res, err
	}
	if it.err != nil {
		return fail(it.err)
	}

	src, skip, err := it.p.resolver.Resolve(ctx, it.name)
	if err != nil {
		return fail(err)
	}
	if skip != nil {
		res.Status = domain.StatusSkipped
		res.ErrorDetail = skip.Reason
		res.Duration = time.Since(start)
		return res, nil
	}
	src, err = converge.Freshen(ctx, it.p.waiter, src)
	if err != nil {
		return fail(err)
	}
	tgt, err := it.p.planner.Plan(ctx, src)
	if err != nil {
		return fail(err)
	}
	res.Target = tgt.Ident.String()
	res.Action = tgt.Action()
	out, err := it.p.driver.Converge(ctx, tgt)
	if err != nil {
		return fail(err)
	}

	res.Status = domain.StatusConverged
	res.Duration = time.Since(start)
	o.logger.Info("sync converged",
		"source", res.SourceName,
		"target", res.Target,
		"action", string(out.Action),
		"objects", out.Objects,
		"replaced", out.Replaced,
	)
	return res, nil
}

// PlanEntry is the dry-run outcome for one work item.
type PlanEntry struct {
	SourceName string
	Target     *domain.Target
	Skip       *domain.Skip
	Err        error
}

// Plan resolves and plans every work item without converging anything.
// Items are planned sequentially.
func (o *Orchestrator) Plan(ctx context.Context, defs []domain.SyncDefinition) ([]PlanEntry, error) {
	if err := o.Validate(defs); err != nil {
		return nil, err
	}
	items := o.expand(ctx, defs)
	entries := make([]PlanEntry, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		e := PlanEntry{SourceName: it.name.String()}
		if it.err != nil {
			e.SourceName = it.p.def.Source
			e.Err = it.err
			entries = append(entries, e)
			continue
		}
		src, skip, err := it.p.resolver.Resolve(ctx, it.name)
		switch {
		case err != nil:
			e.Err = err
		case skip != nil:
			e.Skip = skip
		default:
			e.Target, e.Err = it.p.planner.Plan(ctx, src)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (o *Orchestrator) startRun(ctx context.Context, report *domain.SyncReport) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.StartRun(ctx, report.RunID, report.Started); err != nil {
		o.logger.Warn("failed to record run start", "run_id", report.RunID, "error", err)
	}
}

func (o *Orchestrator) recordResult(ctx context.Context, runID string, position int, res domain.SyncResult) {
	if o.observer != nil {
		o.observer.ObserveResult(res)
	}
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordResult(context.WithoutCancel(ctx), runID, position, res); err != nil {
		o.logger.Warn("failed to record sync result", "run_id", runID, "source", res.SourceName, "error", err)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, report *domain.SyncReport) {
	converged, skipped, failed := report.Counts()
	status := domain.RunSucceeded
	if failed > 0 {
		status = domain.RunFailed
	}
	o.logger.Info("sync run finished",
		"run_id", report.RunID,
		"status", string(status),
		"converged", converged,
		"skipped", skipped,
		"failed", failed,
	)
	if o.observer != nil {
		o.observer.ObserveRun(status)
	}
	if o.recorder == nil {
		return
	}
	finished := report.Finished
	rec := domain.RunRecord{
		ID:         report.RunID,
		StartedAt:  report.Started,
		FinishedAt: &finished,
		Status:     status,
		Converged:  converged,
		Skipped:    skipped,
		Failed:     failed,
	}
	if err := o.recorder.FinishRun(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("failed to record run finish", "run_id", report.RunID, "error", err)
	}
}
