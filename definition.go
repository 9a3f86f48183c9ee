// Package multitenant holds the shared vocabulary of the entity core:
// entity definitions, entity contexts, the request accessor, the error
// taxonomy, logging and lifecycle event observation.
//
// An entity is a logical tenant or resource group identified per request by
// a (type, id) pair. Entity types are described by EntityDefinition values
// loaded once per process from external configuration; live entities are
// represented by EntityContext values owned by the orchestrator.
//
// Subpackages implement the moving parts:
//   - cache: generic TTL + eviction-aware key/value store
//   - identification: request → entity id strategies and their manager
//   - resources: hierarchical resource loading, merge utilities, caching decorator
//   - lifecycle: guarded per-entity state machine
//   - registry: live entity registry with per-type capacity
//   - orchestrator: factory and manager tying everything together
//
// Around the core, config and definitions load process configuration and
// entity definitions, httpadmin exposes the manager over chi, watch and
// schedule keep entities fresh, health reports readiness and cmd/mtctl is
// the command line entry point.
package multitenant

import (
	"strings"
)

// Defaults applied to zero-valued definition fields.
const (
	DefaultPriority               = 999
	DefaultMaxInstances           = 100
	DefaultIdentificationStrategy = "subdomain"
	DefaultMergeStrategy          = MergeOverride
)

// MergeStrategy names a policy for combining a base and an overlay resource set.
type MergeStrategy string

const (
	// MergeOverride keeps the overlay when present, otherwise the base.
	MergeOverride MergeStrategy = "override"
	// MergeExtend is a shallow union where overlay keys win.
	MergeExtend MergeStrategy = "extend"
	// MergeIsolate keeps the overlay only and discards the base.
	MergeIsolate MergeStrategy = "isolate"
	// MergeDeep recursively unions maps and concatenates slices.
	MergeDeep MergeStrategy = "deepMerge"
	// MergeConcat concatenates slices, or shallow-unions maps.
	MergeConcat MergeStrategy = "concat"
)

// Valid reports whether s is one of the known merge strategies.
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeOverride, MergeExtend, MergeIsolate, MergeDeep, MergeConcat:
		return true
	}
	return false
}

// ResourceFlags gates loading per resource category.
type ResourceFlags struct {
	Schemas  bool `json:"schemas" yaml:"schemas" toml:"schemas" env:"LOAD_SCHEMAS"`
	Services bool `json:"services" yaml:"services" toml:"services" env:"LOAD_SERVICES"`
	Plugins  bool `json:"plugins" yaml:"plugins" toml:"plugins" env:"LOAD_PLUGINS"`
	Routes   bool `json:"routes" yaml:"routes" toml:"routes" env:"LOAD_ROUTES"`
}

// AllResources returns flags with every category enabled.
func AllResources() ResourceFlags {
	return ResourceFlags{Schemas: true, Services: true, Plugins: true, Routes: true}
}

// IdentificationConfig carries the options of an identification strategy.
// Which fields are read depends on the strategy:
//   - subdomain: Pattern
//   - path: Prefix, Segment
//   - header: Header, Pattern
//   - query: Parameter, Default
//   - composite: Strategies
type IdentificationConfig struct {
	Pattern    string        `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Prefix     string        `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Segment    int           `json:"segment,omitempty" yaml:"segment,omitempty" toml:"segment,omitempty"`
	Header     string        `json:"header,omitempty" yaml:"header,omitempty" toml:"header,omitempty"`
	Parameter  string        `json:"parameter,omitempty" yaml:"parameter,omitempty" toml:"parameter,omitempty"`
	Default    string        `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Strategies []SubStrategy `json:"strategies,omitempty" yaml:"strategies,omitempty" toml:"strategies,omitempty"`
}

// SubStrategy is one entry of a composite identification strategy.
type SubStrategy struct {
	Type     string `json:"type" yaml:"type" toml:"type"`
	Priority int    `json:"priority" yaml:"priority" toml:"priority"`

	IdentificationConfig `yaml:",inline"`
}

// EntityDefinition describes one entity type. Definitions are immutable once
// loaded and are shared by value.
//
// Zero-valued Priority, MaxInstances, IdentificationStrategy and
// MergeStrategy mean "unset"; WithDefaults fills them in.
type EntityDefinition struct {
	Type                   string               `json:"type" yaml:"type" toml:"type"`
	BasePath               string               `json:"basePath" yaml:"basePath" toml:"basePath" env:"BASE_PATH"`
	IdentificationStrategy string               `json:"identificationStrategy" yaml:"identificationStrategy" toml:"identificationStrategy" env:"IDENTIFICATION_STRATEGY"`
	Identification         IdentificationConfig `json:"identification" yaml:"identification" toml:"identification"`
	Priority               int                  `json:"priority" yaml:"priority" toml:"priority" env:"PRIORITY"`
	Resources              ResourceFlags        `json:"resources" yaml:"resources" toml:"resources"`
	MergeStrategy          MergeStrategy        `json:"mergeStrategy" yaml:"mergeStrategy" toml:"mergeStrategy" env:"MERGE_STRATEGY"`
	Parent                 string               `json:"parent,omitempty" yaml:"parent,omitempty" toml:"parent,omitempty" env:"PARENT"`
	MaxInstances           int                  `json:"maxInstances" yaml:"maxInstances" toml:"maxInstances" env:"MAX_INSTANCES"`
	RoutePrefix            string               `json:"routePrefix,omitempty" yaml:"routePrefix,omitempty" toml:"routePrefix,omitempty" env:"ROUTE_PREFIX"`
	Disabled               bool                 `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled,omitempty" env:"DISABLED"`
}

// WithDefaults returns a copy of d with unset fields defaulted.
func (d EntityDefinition) WithDefaults() EntityDefinition {
	if d.Priority == 0 {
		d.Priority = DefaultPriority
	}
	if d.MaxInstances == 0 {
		d.MaxInstances = DefaultMaxInstances
	}
	if d.IdentificationStrategy == "" {
		d.IdentificationStrategy = DefaultIdentificationStrategy
	}
	if d.MergeStrategy == "" {
		d.MergeStrategy = DefaultMergeStrategy
	}
	if d.BasePath == "" && d.Type != "" {
		d.BasePath = d.Type + "s"
	}
	return d
}

// EffectivePriority returns the priority, falling back to DefaultPriority.
func (d EntityDefinition) EffectivePriority() int {
	if d.Priority == 0 {
		return DefaultPriority
	}
	return d.Priority
}

// EffectiveMaxInstances returns the capacity, falling back to DefaultMaxInstances.
func (d EntityDefinition) EffectiveMaxInstances() int {
	if d.MaxInstances <= 0 {
		return DefaultMaxInstances
	}
	return d.MaxInstances
}

// ResolveRoutePrefix returns the route prefix for id. The RoutePrefix
// template may contain {entityId} and {entityType}; without a template the
// prefix is /{type}s/{id}.
func (d EntityDefinition) ResolveRoutePrefix(id string) string {
	if d.RoutePrefix == "" {
		return "/" + d.Type + "s/" + id
	}
	r := strings.NewReplacer("{entityId}", id, "{entityType}", d.Type)
	return r.Replace(d.RoutePrefix)
}

// TitleType returns the entity type with its first letter upper-cased, as
// used in default header names (tenant → Tenant).
func (d EntityDefinition) TitleType() string {
	if d.Type == "" {
		return ""
	}
	return strings.ToUpper(d.Type[:1]) + d.Type[1:]
}

// DefinitionLookup resolves an entity type to its definition.
type DefinitionLookup interface {
	Definition(entityType string) (EntityDefinition, bool)
}

// DefinitionProvider is a stable, ordered set of entity definitions loaded
// once per process lifetime.
type DefinitionProvider interface {
	DefinitionLookup

	// Definitions returns all definitions in discovery order.
	Definitions() []EntityDefinition
}
