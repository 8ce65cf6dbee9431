package domain

// Action is the operation the convergence driver performs on a target object.
type Action string

// Target actions.
const (
	ActionCreate  Action = "create"
	ActionRefresh Action = "refresh"
)

// Target is the planned state of one object in a target catalog.
//
// DDL creates the object, ReplaceDDL recreates it over an existing one, and
// RefreshStatement re-points an existing object at the source's current
// state. Providers that are not SQL based render descriptive statements and
// act on Source directly.
type Target struct {
	Kind               ObjectKind
	Ident              FQTN
	Source             Source
	Format             TableFormat
	Exists             bool
	CurrentDefinition  string
	DDL                string
	ReplaceDDL         string
	RefreshStatement   string
	RefreshAfterCreate bool
	BaseTables         []*Target
}

// Action reports whether the object is created or refreshed.
func (t *Target) Action() Action {
	if t.Exists {
		return ActionRefresh
	}
	return ActionCreate
}

// Table returns the underlying table source, if any.
func (t *Target) Table() (*TableSource, bool) {
	ts, ok := t.Source.(*TableSource)
	return ts, ok
}

// Walk visits t and its base tables depth-first, bases before dependents.
func (t *Target) Walk(fn func(*Target)) {
	for _, b := range t.BaseTables {
		b.Walk(fn)
	}
	fn(t)
}

// TableStatements is the set of statements a StatementBuilder produces for
// one table.
type TableStatements struct {
	Create             string
	Replace            string
	Refresh            string
	RefreshAfterCreate bool
}
