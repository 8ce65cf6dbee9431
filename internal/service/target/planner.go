package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bricksync/internal/domain"
	"bricksync/internal/service/source"
	"bricksync/internal/sqldialect"
)

// PlannerDeps holds dependencies for Planner.
type PlannerDeps struct {
	Target    domain.TargetCatalog
	Converter domain.DialectConverter
	Namer     Namer
	Logger    *slog.Logger
}

// Planner computes the Target for a resolved Source. Planning only reads
// from the target catalog.
type Planner struct {
	target    domain.TargetCatalog
	converter domain.DialectConverter
	namer     Namer
	logger    *slog.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(deps PlannerDeps) *Planner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		target:    deps.Target,
		converter: deps.Converter,
		namer:     deps.Namer,
		logger:    logger,
	}
}

// Plan returns the planned target for src, including its base tables.
// Objects shared by several views plan once per call.
func (p *Planner) Plan(ctx context.Context, src domain.Source) (*domain.Target, error) {
	return p.plan(ctx, src, make(map[string]*domain.Target))
}

func (p *Planner) plan(ctx context.Context, src domain.Source, planned map[string]*domain.Target) (*domain.Target, error) {
	k := strings.ToLower(src.Name().String())
	if t, ok := planned[k]; ok {
		return t, nil
	}

	ident := p.namer.TargetName(src.Name())
	current, exists, err := p.describe(ctx, ident)
	if err != nil {
		return nil, err
	}

	var t *domain.Target
	switch s := src.(type) {
	case *domain.TableSource:
		t, err = p.planTable(ctx, ident, s)
	case *domain.ViewSource:
		t, err = p.planView(ctx, ident, s, planned)
	default:
		return nil, fmt.Errorf("plan %s: unsupported source type %T", src.Name(), src)
	}
	if err != nil {
		return nil, err
	}
	t.Exists = exists
	t.CurrentDefinition = current

	p.logger.Debug("planned target", "source", src.Name().String(), "target", ident.String(), "action", string(t.Action()))
	planned[k] = t
	return t, nil
}

func (p *Planner) describe(ctx context.Context, ident domain.FQTN) (string, bool, error) {
	current, err := p.target.DescribeObject(ctx, ident)
	if err == nil {
		return current, true, nil
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return "", false, nil
	}
	return "", false, fmt.Errorf("describe target %s: %w", ident, err)
}

func (p *Planner) planTable(ctx context.Context, ident domain.FQTN, s *domain.TableSource) (*domain.Target, error) {
	if !p.target.SupportsFormat(s.Format) {
		return nil, &domain.UnsupportedFormatError{
			Name:   s.Ident.String(),
			Format: s.Format,
			Target: string(p.target.Dialect()),
		}
	}
	stmts, err := p.target.TableStatements(ctx, ident, s)
	if err != nil {
		return nil, fmt.Errorf("build statements for %s: %w", ident, err)
	}
	return &domain.Target{
		Kind:               domain.KindTable,
		Ident:              ident,
		Source:             s,
		Format:             s.Format,
		DDL:                stmts.Create,
		ReplaceDDL:         stmts.Replace,
		RefreshStatement:   stmts.Refresh,
		RefreshAfterCreate: stmts.RefreshAfterCreate,
	}, nil
}

func (p *Planner) planView(ctx context.Context, ident domain.FQTN, v *domain.ViewSource, planned map[string]*domain.Target) (*domain.Target, error) {
	bases := make([]*domain.Target, 0, len(v.BaseTables))
	renamed := make(map[string]domain.FQTN, len(v.BaseTables))
	for _, b := range v.BaseTables {
		bt, err := p.plan(ctx, b, planned)
		if err != nil {
			return nil, err
		}
		bases = append(bases, bt)
		renamed[strings.ToLower(b.Name().String())] = bt.Ident
	}

	to := p.target.Dialect()
	body, err := p.converter.Convert(v.Definition, v.Dialect(), to)
	if err != nil {
		return nil, &domain.DialectConversionError{Name: v.Ident.String(), From: v.Dialect(), To: to, Err: err}
	}
	body, err = sqldialect.RewriteTableRefs(body, to, func(ref sqldialect.TableRef) (string, bool) {
		name, ok := source.Qualify(v.Ident, ref.Parts)
		if !ok {
			return "", false
		}
		tgt, ok := renamed[strings.ToLower(name.String())]
		if !ok {
			return "", false
		}
		return sqldialect.FormatName(tgt.Parts(), to), true
	})
	if err != nil {
		return nil, &domain.DialectConversionError{Name: v.Ident.String(), From: v.Dialect(), To: to, Err: err}
	}

	stmt, err := p.target.ViewStatement(ident, body)
	if err != nil {
		return nil, fmt.Errorf("build view statement for %s: %w", ident, err)
	}
	if v.LowConfidence {
		p.logger.Warn("view definition was inferred and may be incomplete", "view", v.Ident.String())
	}
	return &domain.Target{
		Kind:             v.Kind(),
		Ident:            ident,
		Source:           v,
		DDL:              stmt,
		ReplaceDDL:       stmt,
		RefreshStatement: stmt,
		BaseTables:       bases,
	}, nil
}
