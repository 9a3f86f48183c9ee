package orchestrator

import (
	"context"
	"fmt"
	"sort"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

// Factory builds entity contexts. Adapters are consulted in order and the
// first one that can handle a source wins.
type Factory struct {
	adapters  []Adapter
	strategy  resources.Strategy
	validator multitenant.IDValidator
	logger    multitenant.Logger
}

// NewFactory creates a Factory. A nil validator selects security.Default().
func NewFactory(strategy resources.Strategy, validator multitenant.IDValidator, logger multitenant.Logger, adapters ...Adapter) (*Factory, error) {
	if strategy == nil {
		return nil, multitenant.ErrNilResourceStrategy
	}
	for _, a := range adapters {
		if a == nil {
			return nil, multitenant.ErrNilAdapter
		}
	}
	if validator == nil {
		validator = security.Default()
	}
	return &Factory{
		adapters:  append([]Adapter(nil), adapters...),
		strategy:  strategy,
		validator: validator,
		logger:    multitenant.LoggerOrNop(logger),
	}, nil
}

// Adapters returns the adapters in consultation order.
func (f *Factory) Adapters() []Adapter {
	return append([]Adapter(nil), f.adapters...)
}

// AdapterFor returns the first adapter that can handle source.
func (f *Factory) AdapterFor(source string) (Adapter, bool) {
	for _, a := range f.adapters {
		if a.CanHandle(source) {
			return a, true
		}
	}
	return nil, false
}

// ResolveID returns id, or the id derived from source when id is empty,
// after validation.
func (f *Factory) ResolveID(entityType, source, id string) (string, error) {
	if id == "" {
		id = DeriveID(source)
	}
	return f.validator.ValidateID(id, entityType)
}

// CreateEntity builds the context of one entity of type def.Type from
// source. When the entity's configuration is inactive it returns (nil,
// nil). Resource category failures are logged and leave that category
// empty.
func (f *Factory) CreateEntity(ctx context.Context, def multitenant.EntityDefinition, source, id string) (*multitenant.EntityContext, error) {
	adapter, ok := f.AdapterFor(source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", multitenant.ErrNoAdapter, source)
	}

	id, err := f.ResolveID(def.Type, source, id)
	if err != nil {
		return nil, err
	}

	defaults := multitenant.EntityConfig{ID: id, Name: id, Active: true}
	cfg, err := adapter.LoadConfig(ctx, source, defaults)
	if err != nil {
		return nil, fmt.Errorf("%w: %s config: %w", multitenant.ErrEntityBuildFailed, multitenant.EntityKey(def.Type, id), err)
	}
	cfg.ID = id
	if !cfg.Active {
		f.logger.Info("Entity is inactive, skipping", "entityType", def.Type, "entityID", id, "source", source)
		return nil, nil
	}

	ec := multitenant.NewEntityContext(def.Type, id, cfg, def)
	ec.Adapter = adapter.Name()

	bundle, failures := adapter.LoadResources(ctx, ec, def, f.strategy)
	for _, category := range sortedCategories(failures) {
		f.logger.Warn("Resource category failed to load", "entityType", def.Type, "entityID", id, "category", category, "error", failures[category])
	}

	ec.Schemas = bundle.Schemas
	ec.Services = bundle.Services
	ec.Plugins = bundle.Plugins
	if bundle.RoutesLoaded {
		ec.Routes = append(ec.Routes, def.ResolveRoutePrefix(id))
	}

	f.logger.Debug("Entity created", "entityType", def.Type, "entityID", id, "adapter", adapter.Name(),
		"schemas", len(ec.Schemas), "services", len(ec.Services), "plugins", len(ec.Plugins))
	return ec, nil
}

func sortedCategories(failures map[resources.Category]error) []resources.Category {
	out := make([]resources.Category, 0, len(failures))
	for c := range failures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
