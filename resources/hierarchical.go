package resources

import (
	"context"
	"fmt"
	"path"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// HierarchicalConfig configures layered loading.
type HierarchicalConfig struct {
	// Enabled turns on the global and parent layers. When false only the
	// entity layer is read.
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled" env:"HIERARCHICAL" default:"true"`

	// GlobalPath is the directory holding resources shared by every entity.
	GlobalPath string `json:"globalPath" yaml:"globalPath" toml:"globalPath" env:"GLOBAL_PATH" default:"global"`
}

// DefaultHierarchicalConfig enables hierarchical loading from "global".
func DefaultHierarchicalConfig() HierarchicalConfig {
	return HierarchicalConfig{Enabled: true, GlobalPath: "global"}
}

// Hierarchical loads resources from up to three layers: global, parent
// entity type, and the entity itself. List categories concatenate the
// layers in that order; services are combined with the definition's merge
// strategy.
type Hierarchical struct {
	fetcher Fetcher
	defs    multitenant.DefinitionLookup
	cfg     HierarchicalConfig
	logger  multitenant.Logger
}

var _ Strategy = (*Hierarchical)(nil)

// NewHierarchical creates a Hierarchical strategy. defs resolves parent
// types to their base path and may be nil, in which case a parent's base
// path defaults to its type name plus "s".
func NewHierarchical(fetcher Fetcher, defs multitenant.DefinitionLookup, cfg HierarchicalConfig, logger multitenant.Logger) (*Hierarchical, error) {
	if fetcher == nil {
		return nil, multitenant.ErrNilFetcher
	}
	return &Hierarchical{
		fetcher: fetcher,
		defs:    defs,
		cfg:     cfg,
		logger:  multitenant.LoggerOrNop(logger),
	}, nil
}

// layer is one directory contributing to a category.
type layer struct {
	name string
	dir  string
}

func (h *Hierarchical) globalLayer(category Category) layer {
	return layer{name: "global", dir: path.Join(h.cfg.GlobalPath, string(category))}
}

func (h *Hierarchical) parentLayer(target Target, category Category) (layer, bool) {
	parent := target.Definition.Parent
	if parent == "" {
		return layer{}, false
	}
	def := multitenant.EntityDefinition{Type: parent}
	if h.defs != nil {
		if found, ok := h.defs.Definition(parent); ok {
			def = found
		}
	}
	return layer{name: "parent", dir: path.Join(def.WithDefaults().BasePath, string(category))}, true
}

func entityLayer(target Target, category Category) layer {
	return layer{name: "entity", dir: path.Join(target.Path, string(category))}
}

// listLayers returns the layers read for a list category, in merge order.
func (h *Hierarchical) listLayers(target Target, category Category) []layer {
	layers := make([]layer, 0, 3)
	if h.cfg.Enabled {
		layers = append(layers, h.globalLayer(category))
		if p, ok := h.parentLayer(target, category); ok {
			layers = append(layers, p)
		}
	}
	return append(layers, entityLayer(target, category))
}

func (h *Hierarchical) loadList(ctx context.Context, target Target, category Category, load func(context.Context, string) ([]string, error)) []string {
	out := make([]string, 0)
	for _, l := range h.listLayers(target, category) {
		if !h.fetcher.Exists(ctx, l.dir) {
			continue
		}
		items, err := load(ctx, l.dir)
		if err != nil {
			h.logger.Warn("Resource layer failed to load",
				"category", category, "layer", l.name, "dir", l.dir,
				"entityType", target.Type, "entityID", target.ID, "error", err)
			continue
		}
		out = append(out, items...)
	}
	return out
}

// LoadSchemas concatenates global, parent and entity schemas. Layer
// failures are logged and skipped, so the result is always successful.
func (h *Hierarchical) LoadSchemas(ctx context.Context, target Target) Result[[]string] {
	if !target.Definition.Resources.Schemas {
		return Ok([]string{})
	}
	return Ok(h.loadList(ctx, target, CategorySchemas, h.fetcher.LoadSchemas))
}

// LoadPlugins concatenates global, parent and entity plugins. Layer
// failures are logged and skipped, so the result is always successful.
func (h *Hierarchical) LoadPlugins(ctx context.Context, target Target) Result[[]string] {
	if !target.Definition.Resources.Plugins {
		return Ok([]string{})
	}
	return Ok(h.loadList(ctx, target, CategoryPlugins, h.fetcher.LoadPlugins))
}

// LoadServices seeds a map from the global layer (skipped for isolate),
// loads the entity layer and combines them:
//   - extend: shallow union, entity keys win
//   - override: the entity map when it has entries, otherwise the global map
//   - isolate: the entity map only
//   - deepMerge, concat: the general merge functions
//
// A failing global layer is skipped; a failing entity layer fails the load.
func (h *Hierarchical) LoadServices(ctx context.Context, target Target) Result[map[string]any] {
	def := target.Definition
	if !def.Resources.Services {
		return Ok(map[string]any{})
	}
	strategy := def.MergeStrategy
	if strategy == "" {
		strategy = multitenant.DefaultMergeStrategy
	}
	if !strategy.Valid() {
		return Fail[map[string]any](fmt.Errorf("%w: %q for entity type %s", multitenant.ErrUnknownMergeStrategy, strategy, def.Type))
	}

	global := map[string]any{}
	if h.cfg.Enabled && strategy != multitenant.MergeIsolate {
		g := h.globalLayer(CategoryServices)
		if h.fetcher.Exists(ctx, g.dir) {
			loaded, err := h.fetcher.LoadServices(ctx, g.dir)
			if err != nil {
				h.logger.Warn("Resource layer failed to load",
					"category", CategoryServices, "layer", g.name, "dir", g.dir,
					"entityType", target.Type, "entityID", target.ID, "error", err)
			} else if loaded != nil {
				global = loaded
			}
		}
	}

	own := map[string]any{}
	e := entityLayer(target, CategoryServices)
	if h.fetcher.Exists(ctx, e.dir) {
		loaded, err := h.fetcher.LoadServices(ctx, e.dir)
		if err != nil {
			return Fail[map[string]any](fmt.Errorf("load services for %s: %w", multitenant.EntityKey(target.Type, target.ID), err))
		}
		if loaded != nil {
			own = loaded
		}
	}

	switch strategy {
	case multitenant.MergeOverride:
		if len(own) > 0 {
			return Ok(own)
		}
		return Ok(global)
	case multitenant.MergeIsolate:
		return Ok(own)
	}

	merged, err := Merge(strategy, global, own)
	if err != nil {
		return Fail[map[string]any](err)
	}
	m, _ := merged.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return Ok(m)
}

// LoadRoutes registers the entity's routes once under the resolved route
// prefix. It reports false when the entity has no routes directory.
func (h *Hierarchical) LoadRoutes(ctx context.Context, target Target) Result[bool] {
	if !target.Definition.Resources.Routes {
		return Ok(false)
	}
	e := entityLayer(target, CategoryRoutes)
	if !h.fetcher.Exists(ctx, e.dir) {
		return Ok(false)
	}
	prefix := target.Definition.ResolveRoutePrefix(target.ID)
	if err := h.fetcher.RegisterRoutes(ctx, e.dir, prefix, target); err != nil {
		return Fail[bool](fmt.Errorf("register routes for %s: %w", multitenant.EntityKey(target.Type, target.ID), err))
	}
	h.logger.Debug("Registered entity routes", "entityType", target.Type, "entityID", target.ID, "prefix", prefix)
	return Ok(true)
}
