package identification

import (
	"sort"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// Lookup resolves a strategy by name.
type Lookup func(name string) (Strategy, bool)

// Composite tries a list of sub-strategies in ascending priority order and
// returns the first non-empty id. A sub-strategy that errors or is unknown
// is skipped.
type Composite struct {
	lookup Lookup
	logger multitenant.Logger
}

var _ Strategy = (*Composite)(nil)

// NewComposite creates a Composite resolving sub-strategies through lookup.
func NewComposite(lookup Lookup, logger multitenant.Logger) *Composite {
	return &Composite{lookup: lookup, logger: multitenant.LoggerOrNop(logger)}
}

// NewCompositeFromMap creates a Composite over a fixed name → strategy map.
func NewCompositeFromMap(strategies map[string]Strategy, logger multitenant.Logger) *Composite {
	return NewComposite(func(name string) (Strategy, bool) {
		s, ok := strategies[name]
		return s, ok
	}, logger)
}

func orderedSubStrategies(def multitenant.EntityDefinition) []multitenant.SubStrategy {
	subs := make([]multitenant.SubStrategy, len(def.Identification.Strategies))
	copy(subs, def.Identification.Strategies)
	// Priority 0 is a real priority here, unlike definition priorities;
	// equal priorities keep their configured order.
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Priority < subs[j].Priority
	})
	return subs
}

// subDefinition derives the definition a sub-strategy sees: the same entity
// type with the sub-strategy's own options.
func subDefinition(def multitenant.EntityDefinition, sub multitenant.SubStrategy) multitenant.EntityDefinition {
	derived := def
	derived.IdentificationStrategy = sub.Type
	derived.Identification = sub.IdentificationConfig
	return derived
}

// ExtractID returns the first id produced by a sub-strategy.
func (c *Composite) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	for _, sub := range orderedSubStrategies(def) {
		s, ok := c.lookup(sub.Type)
		if !ok {
			c.logger.Debug("Composite sub-strategy not found", "entityType", def.Type, "strategy", sub.Type)
			continue
		}
		id, err := safeExtract(s, req, subDefinition(def, sub))
		if err != nil {
			c.logger.Debug("Composite sub-strategy failed", "entityType", def.Type, "strategy", sub.Type, "error", err)
			continue
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}

// ValidateConfig requires at least one sub-strategy, each known and valid.
func (c *Composite) ValidateConfig(def multitenant.EntityDefinition) bool {
	if len(def.Identification.Strategies) == 0 {
		return false
	}
	for _, sub := range def.Identification.Strategies {
		s, ok := c.lookup(sub.Type)
		if !ok || !s.ValidateConfig(subDefinition(def, sub)) {
			return false
		}
	}
	return true
}
