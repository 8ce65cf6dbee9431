package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bricksync/internal/domain"
	"bricksync/internal/sqldialect"
)

// Table properties consulted during resolution.
const (
	propIcebergCompatV2   = "delta.enableIcebergCompatV2"
	propUniversalFormats  = "delta.universalFormat.enabledFormats"
	reconciliationPattern = "spark.internal.%s.reconciliation_query"
)

// ResolverDeps holds dependencies for Resolver.
type ResolverDeps struct {
	Reader     domain.CatalogReader
	Uniform    domain.UniformReader // optional
	Preference domain.FormatPreference
	Dialect    domain.Dialect
	Logger     *slog.Logger
}

// Resolver turns source names into Source graphs.
type Resolver struct {
	reader  domain.CatalogReader
	uniform domain.UniformReader
	pref    domain.FormatPreference
	dialect domain.Dialect
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(deps ResolverDeps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pref := deps.Preference
	if pref == "" {
		pref = domain.PreferMirror
	}
	return &Resolver{
		reader:  deps.Reader,
		uniform: deps.Uniform,
		pref:    pref,
		dialect: deps.Dialect,
		logger:  logger,
	}
}

// resolution is the per-call traversal state.
type resolution struct {
	done  map[string]resolved
	stack []string
	open  map[string]bool
}

type resolved struct {
	src  domain.Source
	skip *domain.Skip
}

func key(n domain.FQTN) string { return strings.ToLower(n.String()) }

// Resolve classifies name and resolves its dependency graph. Exactly one of
// the three results is non-nil: a Source, a Skip for objects that cannot be
// synced, or an error.
func (r *Resolver) Resolve(ctx context.Context, name domain.FQTN) (domain.Source, *domain.Skip, error) {
	res := &resolution{
		done: make(map[string]resolved),
		open: make(map[string]bool),
	}
	return r.resolve(ctx, res, name)
}

func (r *Resolver) resolve(ctx context.Context, res *resolution, name domain.FQTN) (domain.Source, *domain.Skip, error) {
	k := key(name)
	if got, ok := res.done[k]; ok {
		return got.src, got.skip, nil
	}
	if res.open[k] {
		return nil, nil, &domain.CyclicDependencyError{Path: cyclePath(res.stack, name)}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	res.open[k] = true
	res.stack = append(res.stack, name.String())
	defer func() {
		delete(res.open, k)
		res.stack = res.stack[:len(res.stack)-1]
	}()

	md, err := r.reader.GetObjectMetadata(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("get metadata for %s: %w", name, err)
	}

	var (
		src  domain.Source
		skip *domain.Skip
	)
	if md.Kind.IsViewLike() {
		src, skip, err = r.resolveView(ctx, res, name, md)
	} else {
		src, skip, err = r.resolveTable(ctx, name, md)
	}
	if err != nil {
		return nil, nil, err
	}
	if skip != nil {
		r.logger.Warn("skipping source object", "name", name.String(), "reason", skip.Reason)
	}
	res.done[k] = resolved{src: src, skip: skip}
	return src, skip, nil
}

func cyclePath(stack []string, name domain.FQTN) []string {
	start := 0
	for i, s := range stack {
		if strings.EqualFold(s, name.String()) {
			start = i
			break
		}
	}
	path := append([]string{}, stack[start:]...)
	return append(path, name.String())
}

func (r *Resolver) resolveTable(ctx context.Context, name domain.FQTN, md *domain.ObjectMetadata) (domain.Source, *domain.Skip, error) {
	native := md.Format
	if !Supported(native) {
		return nil, &domain.Skip{Name: name, Reason: fmt.Sprintf("table format %q is not supported", native)}, nil
	}

	var uniform *domain.UniformMetadata
	if r.wantsProjection(native, md.Properties) {
		u, err := r.uniform.GetUniformMetadata(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("get uniform metadata for %s: %w", name, err)
		}
		uniform = u
	}
	openPresent := uniform != nil && uniform.MetadataLocation != ""

	return &domain.TableSource{
		Ident:                   name,
		SourceDialect:           r.dialect,
		StorageLocation:         md.StorageLocation,
		NativeFormat:            native,
		Format:                  ResolveFormat(native, r.pref, openPresent),
		IcebergMetadataLocation: md.IcebergMetadataLocation,
		PartitionKeys:           md.PartitionKeys,
		Uniform:                 uniform,
		Properties:              md.Properties,
	}, nil, nil
}

// wantsProjection reports whether uniform metadata is worth fetching. Tables
// that report properties must have UniForm enabled; readers that report no
// properties at all are always asked.
func (r *Resolver) wantsProjection(native domain.TableFormat, props map[string]string) bool {
	if r.uniform == nil || native != domain.FormatDelta || !r.pref.WantsOpenFormat() {
		return false
	}
	if len(props) == 0 {
		return true
	}
	if strings.EqualFold(props[propIcebergCompatV2], "true") {
		return true
	}
	return strings.Contains(strings.ToLower(props[propUniversalFormats]), "iceberg")
}

func (r *Resolver) resolveView(ctx context.Context, res *resolution, name domain.FQTN, md *domain.ObjectMetadata) (domain.Source, *domain.Skip, error) {
	def := md.ViewDefinition
	lowConfidence := false
	if def == "" && md.Kind != domain.KindView {
		def = md.Properties[fmt.Sprintf(reconciliationPattern, md.Kind)]
		if def != "" {
			lowConfidence = true
			r.logger.Warn("using reconciliation query as view definition", "name", name.String(), "kind", string(md.Kind))
		}
	}
	if strings.TrimSpace(def) == "" {
		return nil, &domain.Skip{Name: name, Reason: fmt.Sprintf("%s has no definition", md.Kind)}, nil
	}

	if r.dialect == domain.DialectDatabricks || r.dialect == domain.DialectSpark {
		def = strings.ReplaceAll(def, "`", "")
	}
	body, err := sqldialect.StripViewHeader(def, r.dialect)
	if err != nil {
		return nil, nil, fmt.Errorf("parse definition of %s: %w", name, err)
	}

	deps, inferred, err := r.baseTableNames(name, md.DeclaredDependencies, body)
	if err != nil {
		return nil, nil, err
	}
	if inferred {
		lowConfidence = true
	}

	bases := make([]domain.Source, 0, len(deps))
	for _, dep := range deps {
		src, skip, err := r.resolve(ctx, res, dep)
		if err != nil {
			return nil, nil, err
		}
		if skip != nil {
			return nil, &domain.Skip{
				Name:   name,
				Reason: fmt.Sprintf("base table %s is skipped: %s", dep, skip.Reason),
			}, nil
		}
		bases = append(bases, src)
	}

	return &domain.ViewSource{
		Ident:         name,
		ObjectKind:    md.Kind,
		SourceDialect: r.dialect,
		Definition:    body,
		BaseTables:    bases,
		LowConfidence: lowConfidence,
	}, nil, nil
}

// baseTableNames returns the dependencies of a view in declaration order.
// Declared dependencies count only when their name occurs in the body. With
// nothing declared the body is scanned for table references, and inferred
// is true.
func (r *Resolver) baseTableNames(view domain.FQTN, declared []domain.FQTN, body string) (names []domain.FQTN, inferred bool, err error) {
	seen := make(map[string]bool)
	add := func(n domain.FQTN) {
		k := key(n)
		if seen[k] {
			return
		}
		seen[k] = true
		names = append(names, n)
	}

	if len(declared) > 0 {
		lower := strings.ToLower(strings.NewReplacer("`", "", `"`, "").Replace(body))
		for _, dep := range declared {
			if mentions(lower, strings.ToLower(dep.String())) {
				add(dep)
			}
		}
		return names, false, nil
	}

	refs, err := sqldialect.TableRefs(body, r.dialect)
	if err != nil {
		return nil, false, fmt.Errorf("scan table references of %s: %w", view, err)
	}
	for _, ref := range refs {
		if n, ok := Qualify(view, ref.Parts); ok {
			add(n)
		}
	}
	return names, true, nil
}

// mentions reports whether name occurs in body as a whole dotted name, not
// as the prefix or suffix of a longer identifier.
func mentions(body, name string) bool {
	for from := 0; ; {
		i := strings.Index(body[from:], name)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(name)
		if (start == 0 || !isNamePart(body[start-1])) && (end == len(body) || !isNamePart(body[end])) {
			return true
		}
		from = start + 1
	}
}

func isNamePart(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Qualify completes a 1- or 2-part reference with the catalog and schema of
// the view that contains it.
func Qualify(view domain.FQTN, parts []string) (domain.FQTN, bool) {
	switch len(parts) {
	case 1:
		return domain.FQTN{Catalog: view.Catalog, Schema: view.Schema, Table: parts[0]}, true
	case 2:
		return domain.FQTN{Catalog: view.Catalog, Schema: parts[0], Table: parts[1]}, true
	case 3:
		return domain.FQTN{Catalog: parts[0], Schema: parts[1], Table: parts[2]}, true
	default:
		return domain.FQTN{}, false
	}
}
