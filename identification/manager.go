package identification

import (
	"fmt"
	"sort"
	"sync"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

// EntityInfo is one entity matched by a request.
type EntityInfo struct {
	Type       string                       `json:"type"`
	ID         string                       `json:"id"`
	Priority   int                          `json:"priority"`
	Definition multitenant.EntityDefinition `json:"-"`
}

// Ref returns the entity reference of the match.
func (e EntityInfo) Ref() multitenant.EntityRef {
	return multitenant.EntityRef{Type: e.Type, ID: e.ID}
}

// Manager holds the strategy registry and resolves requests to entities.
type Manager struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	builtin    map[string]bool
	validator  multitenant.IDValidator
	logger     multitenant.Logger
}

// NewManager creates a Manager with the built-in strategies registered.
// A nil validator selects security.Default().
func NewManager(validator multitenant.IDValidator, logger multitenant.Logger) *Manager {
	if validator == nil {
		validator = security.Default()
	}
	m := &Manager{
		strategies: make(map[string]Strategy),
		builtin:    make(map[string]bool),
		validator:  validator,
		logger:     multitenant.LoggerOrNop(logger),
	}

	m.strategies[StrategySubdomain] = NewSubdomain()
	m.strategies[StrategyPath] = NewPath()
	m.strategies[StrategyHeader] = NewHeader()
	m.strategies[StrategyQuery] = NewQuery()
	m.strategies[StrategyComposite] = NewComposite(m.Strategy, m.logger)
	for name := range m.strategies {
		m.builtin[name] = true
	}
	return m
}

// Register binds a user strategy to name. Built-in names cannot be
// replaced; a nil strategy is a contract violation.
func (m *Manager) Register(name string, s Strategy) error {
	if name == "" {
		return multitenant.ErrEmptyName
	}
	if s == nil {
		return fmt.Errorf("%w: %s", multitenant.ErrNilStrategy, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.builtin[name] {
		return fmt.Errorf("%w: %s", multitenant.ErrBuiltinStrategy, name)
	}
	m.strategies[name] = s
	m.logger.Debug("Registered identification strategy", "strategy", name)
	return nil
}

// Unregister removes a user strategy.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.builtin[name] {
		return fmt.Errorf("%w: %s", multitenant.ErrBuiltinStrategy, name)
	}
	if _, ok := m.strategies[name]; !ok {
		return fmt.Errorf("%w: %s", multitenant.ErrUnknownStrategy, name)
	}
	delete(m.strategies, name)
	return nil
}

// Strategy returns the strategy bound to name.
func (m *Manager) Strategy(name string) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[name]
	return s, ok
}

// Names returns the registered strategy names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.strategies))
	for name := range m.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDefinition checks that def names a known strategy whose options are valid.
func (m *Manager) ValidateDefinition(def multitenant.EntityDefinition) error {
	name := strategyName(def)
	s, ok := m.Strategy(name)
	if !ok {
		return fmt.Errorf("%w: %q for entity type %s", multitenant.ErrUnknownStrategy, name, def.Type)
	}
	if !s.ValidateConfig(def) {
		return fmt.Errorf("%w: invalid %s identification options for entity type %s", multitenant.ErrConfiguration, name, def.Type)
	}
	return nil
}

// ExtractEntityInfo runs the strategy of every enabled definition against
// req and returns the validated matches sorted by ascending priority. Ties
// keep the order of defs. Definitions whose strategy is unknown, fails or
// yields an invalid id are skipped.
func (m *Manager) ExtractEntityInfo(req multitenant.Request, defs []multitenant.EntityDefinition) []EntityInfo {
	matches := make([]EntityInfo, 0, len(defs))

	for _, def := range defs {
		if def.Disabled {
			continue
		}

		name := strategyName(def)
		s, ok := m.Strategy(name)
		if !ok {
			m.logger.Debug("Unknown identification strategy", "entityType", def.Type, "strategy", name)
			continue
		}

		id, err := safeExtract(s, req, def)
		if err != nil {
			m.logger.Debug("Entity identification failed", "entityType", def.Type, "strategy", name, "error", err)
			continue
		}
		if id == "" {
			continue
		}

		validID, err := m.validator.ValidateID(id, def.Type)
		if err != nil {
			m.logger.Debug("Rejected entity id", "entityType", def.Type, "entityID", id, "error", err)
			continue
		}

		matches = append(matches, EntityInfo{
			Type:       def.Type,
			ID:         validID,
			Priority:   def.EffectivePriority(),
			Definition: def,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority < matches[j].Priority
	})
	return matches
}

// ExtractPrimaryEntity returns the highest-priority match.
func (m *Manager) ExtractPrimaryEntity(req multitenant.Request, defs []multitenant.EntityDefinition) (EntityInfo, bool) {
	matches := m.ExtractEntityInfo(req, defs)
	if len(matches) == 0 {
		return EntityInfo{}, false
	}
	return matches[0], true
}

func strategyName(def multitenant.EntityDefinition) string {
	if def.IdentificationStrategy == "" {
		return multitenant.DefaultIdentificationStrategy
	}
	return def.IdentificationStrategy
}

// safeExtract runs s and converts a panic into an error so a misbehaving
// strategy cannot fail the whole request.
func safeExtract(s Strategy, req multitenant.Request, def multitenant.EntityDefinition) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: strategy panicked: %v", multitenant.ErrContractViolation, r)
		}
	}()
	return s.ExtractID(req, def)
}
