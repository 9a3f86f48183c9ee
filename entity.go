package multitenant

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// EntityConfig is the resolved configuration of one entity instance, as
// produced by an adapter from the entity's source.
type EntityConfig struct {
	ID       string         `json:"id" yaml:"id" toml:"id"`
	Name     string         `json:"name" yaml:"name" toml:"name"`
	Active   bool           `json:"active" yaml:"active" toml:"active"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty" toml:"settings,omitempty"`
	Source   string         `json:"source,omitempty" yaml:"-" toml:"-"`
	// Path is the resolved resource directory of the entity, relative to
	// the resource fetcher root. It differs from Source for remote sources.
	Path string `json:"path,omitempty" yaml:"-" toml:"-"`
}

// EntityMetadata is carried over from the definition the entity was built from.
type EntityMetadata struct {
	Parent        string        `json:"parent,omitempty"`
	Priority      int           `json:"priority"`
	MergeStrategy MergeStrategy `json:"mergeStrategy"`
	Source        string        `json:"source,omitempty"`
}

// EntityContext is a live entity instance. It is created by the orchestrator
// after successful resource loading, mutated only during load, and dropped
// from the registry on unload.
type EntityContext struct {
	InstanceID string         `json:"instanceId"`
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Config     EntityConfig   `json:"config"`
	Adapter    string         `json:"adapter"`
	Services   map[string]any `json:"-"`
	Plugins    []string       `json:"plugins"`
	Schemas    []string       `json:"schemas"`
	Routes     []string       `json:"routes"`
	Active     bool           `json:"active"`
	CreatedAt  time.Time      `json:"createdAt"`
	Metadata   EntityMetadata `json:"metadata"`
}

// NewEntityContext creates an active context for (entityType, id) with empty
// resource collections.
func NewEntityContext(entityType, id string, cfg EntityConfig, def EntityDefinition) *EntityContext {
	return &EntityContext{
		InstanceID: newInstanceID(),
		Type:       entityType,
		ID:         id,
		Config:     cfg,
		Services:   make(map[string]any),
		Plugins:    make([]string, 0),
		Schemas:    make([]string, 0),
		Routes:     make([]string, 0),
		Active:     true,
		CreatedAt:  time.Now(),
		Metadata: EntityMetadata{
			Parent:        def.Parent,
			Priority:      def.EffectivePriority(),
			MergeStrategy: def.MergeStrategy,
			Source:        cfg.Source,
		},
	}
}

// Key returns the registry key of the context.
func (c *EntityContext) Key() string {
	return EntityKey(c.Type, c.ID)
}

// ServiceNames returns the loaded service names in sorted order.
func (c *EntityContext) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityKey builds the "type:id" key used by the registry and lifecycle.
func EntityKey(entityType, id string) string {
	return entityType + ":" + id
}

func newInstanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
