// Package definitions loads entity definitions from configuration files and
// serves them as a multitenant.DefinitionProvider.
//
// A definitions file holds an "entities" table keyed by entity type:
//
//	entities:
//	  tenant:
//	    identificationStrategy: subdomain
//	    priority: 10
//	    mergeStrategy: extend
//	  org:
//	    identificationStrategy: header
//	    resources: {schemas: true, services: true}
//
// Omitted resources enable every category. Definitions are ordered by type
// name, which is the discovery order used when priorities tie.
package definitions

import (
	"fmt"
	"os"
	"sort"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/feeders"
)

// EntitiesKey is the top-level key holding the definitions table.
const EntitiesKey = "entities"

var (
	ErrDuplicateType = fmt.Errorf("%w: duplicate entity type", multitenant.ErrConfiguration)
	ErrUnknownParent = fmt.Errorf("%w: unknown parent entity type", multitenant.ErrConfiguration)
	ErrParentCycle   = fmt.Errorf("%w: parent chain contains a cycle", multitenant.ErrConfiguration)
)

// Static is an immutable, ordered set of definitions.
type Static struct {
	defs   []multitenant.EntityDefinition
	byType map[string]int
}

var _ multitenant.DefinitionProvider = (*Static)(nil)

// NewStatic validates defs, applies defaults and keeps them in the given order.
func NewStatic(defs ...multitenant.EntityDefinition) (*Static, error) {
	s := &Static{
		defs:   make([]multitenant.EntityDefinition, 0, len(defs)),
		byType: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if strings.TrimSpace(def.Type) == "" {
			return nil, fmt.Errorf("%w: entity definition without type", multitenant.ErrEmptyName)
		}
		if _, dup := s.byType[def.Type]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, def.Type)
		}
		def = def.WithDefaults()
		if !def.MergeStrategy.Valid() {
			return nil, fmt.Errorf("%w: %q for entity type %s", multitenant.ErrUnknownMergeStrategy, def.MergeStrategy, def.Type)
		}
		if def.Priority < 0 || def.MaxInstances < 0 {
			return nil, fmt.Errorf("%w: entity type %s has a negative priority or instance limit", multitenant.ErrValidation, def.Type)
		}
		s.byType[def.Type] = len(s.defs)
		s.defs = append(s.defs, def)
	}

	if err := s.checkParents(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Static) checkParents() error {
	for _, def := range s.defs {
		seen := map[string]bool{def.Type: true}
		for parent := def.Parent; parent != ""; {
			idx, ok := s.byType[parent]
			if !ok {
				return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, parent, def.Type)
			}
			if seen[parent] {
				return fmt.Errorf("%w: %s", ErrParentCycle, def.Type)
			}
			seen[parent] = true
			parent = s.defs[idx].Parent
		}
	}
	return nil
}

// Definitions returns every definition in discovery order.
func (s *Static) Definitions() []multitenant.EntityDefinition {
	out := make([]multitenant.EntityDefinition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Definition returns the definition of entityType.
func (s *Static) Definition(entityType string) (multitenant.EntityDefinition, bool) {
	idx, ok := s.byType[entityType]
	if !ok {
		return multitenant.EntityDefinition{}, false
	}
	return s.defs[idx], true
}

// Types returns the entity type names in discovery order.
func (s *Static) Types() []string {
	out := make([]string, len(s.defs))
	for i, def := range s.defs {
		out[i] = def.Type
	}
	return out
}

// Option adjusts loading.
type Option func(*loadOptions)

type loadOptions struct {
	envPrefix string
	lookup    func(string) (string, bool)
}

// WithEnvOverrides applies environment overrides after decoding. A field
// tagged `env:"PRIORITY"` of type tenant is read from PREFIX_TENANT_PRIORITY.
func WithEnvOverrides(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithLookup replaces os.LookupEnv for environment overrides.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) {
		o.lookup = lookup
	}
}

// LoadFile reads definitions from a yaml, json or toml file.
func LoadFile(path string, opts ...Option) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity definitions: %w", err)
	}
	return Load(path, data, opts...)
}

// resourcePresence detects whether a definition configured its resources.
type resourcePresence struct {
	Resources *multitenant.ResourceFlags `json:"resources" yaml:"resources" toml:"resources"`
}

// Load decodes definitions from data; name selects the format by extension.
func Load(name string, data []byte, opts ...Option) (*Static, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var table map[string]multitenant.EntityDefinition
	if err := feeders.DecodeKey(name, data, EntitiesKey, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", multitenant.ErrConfiguration, err)
	}
	var presence map[string]resourcePresence
	if err := feeders.DecodeKey(name, data, EntitiesKey, &presence); err != nil {
		return nil, fmt.Errorf("%w: %v", multitenant.ErrConfiguration, err)
	}

	types := make([]string, 0, len(table))
	for t := range table {
		types = append(types, t)
	}
	sort.Strings(types)

	defs := make([]multitenant.EntityDefinition, 0, len(types))
	for _, t := range types {
		def := table[t]
		if def.Type == "" {
			def.Type = t
		}
		if def.Type != t {
			return nil, fmt.Errorf("%w: entry %q declares type %q", multitenant.ErrConfiguration, t, def.Type)
		}
		if presence[t].Resources == nil {
			def.Resources = multitenant.AllResources()
		}
		if o.envPrefix != "" {
			if err := applyEnv(&def, o); err != nil {
				return nil, err
			}
		}
		defs = append(defs, def)
	}
	return NewStatic(defs...)
}

func applyEnv(def *multitenant.EntityDefinition, o loadOptions) error {
	f := feeders.AffixedEnvFeeder{
		Prefix: o.envPrefix + "_" + strings.ReplaceAll(def.Type, "-", "_"),
		Lookup: o.lookup,
	}
	if err := f.Feed(def); err != nil {
		return fmt.Errorf("%w: env overrides for %s: %v", multitenant.ErrConfiguration, def.Type, err)
	}
	return nil
}
