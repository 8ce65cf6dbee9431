// Package target plans the state each resolved source should have in a
// target catalog.
package target

import (
	"bricksync/internal/domain"
)

// Namer maps source names to target names according to a sync strategy.
type Namer struct {
	strategy domain.SyncStrategy
	catalog  string
	schema   string
}

// NewNamer builds a Namer. custom_catalog needs target_catalog and
// custom_schema needs target_schema in cfg.
func NewNamer(strategy domain.SyncStrategy, cfg map[string]string) (Namer, error) {
	n := Namer{strategy: strategy}
	switch strategy {
	case "", domain.StrategyMirror:
		n.strategy = domain.StrategyMirror
	case domain.StrategyCustomCatalog:
		n.catalog = cfg[domain.ConfigTargetCatalog]
		if n.catalog == "" {
			return Namer{}, domain.ErrConfig("sync strategy %s requires %q in source_configuration", strategy, domain.ConfigTargetCatalog)
		}
	case domain.StrategyCustomSchema:
		n.schema = cfg[domain.ConfigTargetSchema]
		if n.schema == "" {
			return Namer{}, domain.ErrConfig("sync strategy %s requires %q in source_configuration", strategy, domain.ConfigTargetSchema)
		}
	default:
		return Namer{}, domain.ErrConfig("unknown sync strategy %q", strategy)
	}
	return n, nil
}

// Strategy returns the strategy in effect.
func (n Namer) Strategy() domain.SyncStrategy { return n.strategy }

// TargetName returns the target name for src.
func (n Namer) TargetName(src domain.FQTN) domain.FQTN {
	switch n.strategy {
	case domain.StrategyCustomCatalog:
		return src.WithCatalog(n.catalog)
	case domain.StrategyCustomSchema:
		return src.WithSchema(n.schema)
	default:
		return src
	}
}
