package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/cache"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/identification"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/lifecycle"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/registry"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

// Stats is a snapshot of the manager.
type Stats struct {
	Entities    registry.Stats `json:"entities"`
	Cache       cache.Stats    `json:"cache"`
	States      map[string]int `json:"states"`
	Definitions int            `json:"definitions"`
}

// LoadSummary reports the outcome of LoadAllEntities.
type LoadSummary struct {
	Loaded   []multitenant.EntityRef `json:"loaded"`
	Inactive []multitenant.EntityRef `json:"inactive"`
	Failed   map[string]string       `json:"failed"`
}

// Manager owns the entity core: the resource cache, registry, lifecycle
// state machine, identification and factory. An entity is registered
// exactly while its lifecycle state is active or suspended.
type Manager struct {
	defs           multitenant.DefinitionProvider
	store          *cache.Store[any]
	resources      *resources.Caching
	registry       *registry.Registry
	lifecycle      *lifecycle.Manager
	identification *identification.Manager
	factory        *Factory
	routes         resources.RouteRegistrar
	logger         multitenant.Logger
}

// New creates a Manager reading entities from fsys. Entity sources are
// directories of fsys; an entity of type T with id X lives at
// <T's base path>/X.
func New(defs multitenant.DefinitionProvider, fsys fs.FS, opts ...Option) (*Manager, error) {
	if defs == nil {
		return nil, fmt.Errorf("%w: definition provider is nil", multitenant.ErrContractViolation)
	}
	if fsys == nil {
		return nil, fmt.Errorf("%w: entity file system is nil", multitenant.ErrContractViolation)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	logger := multitenant.LoggerOrNop(o.logger)
	validator := o.validator
	if validator == nil {
		validator = security.Default()
	}

	var cacheOpts []cache.Option[any]
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock[any](o.clock))
	}
	if o.registerer != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[any](o.registerer, "entity_resources"))
	}
	store, err := cache.New[any](o.cacheConfig, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("resource cache: %w", err)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = resources.NewFSFetcher(fsys, o.registrar)
	}
	hierarchical, err := resources.NewHierarchical(fetcher, defs, o.hierarchical, logger)
	if err != nil {
		return nil, err
	}
	caching, err := resources.NewCaching(hierarchical, store, logger)
	if err != nil {
		return nil, err
	}

	adapters := []Adapter{NewLocalAdapter(fsys)}
	if o.packages != nil {
		remote, err := NewRemoteAdapter(fsys, o.packages)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, remote)
	}
	adapters = append(adapters, o.adapters...)

	factory, err := NewFactory(caching, validator, logger, adapters...)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		defs:           defs,
		store:          store,
		resources:      caching,
		registry:       registry.New(defs, logger),
		lifecycle:      lifecycle.NewManager(logger),
		identification: identification.NewManager(validator, logger),
		factory:        factory,
		routes:         o.registrar,
		logger:         logger,
	}

	for _, def := range defs.Definitions() {
		if err := m.identification.ValidateDefinition(def); err != nil {
			logger.Warn("Entity definition has invalid identification", "entityType", def.Type, "error", err)
		}
	}
	return m, nil
}

// Definitions returns the definition provider.
func (m *Manager) Definitions() multitenant.DefinitionProvider { return m.defs }

// Registry returns the entity registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Lifecycle returns the lifecycle state machine.
func (m *Manager) Lifecycle() *lifecycle.Manager { return m.lifecycle }

// Identification returns the identification manager.
func (m *Manager) Identification() *identification.Manager { return m.identification }

// Resources returns the caching resource strategy.
func (m *Manager) Resources() *resources.Caching { return m.resources }

// Factory returns the entity factory.
func (m *Manager) Factory() *Factory { return m.factory }

// IdentifyEntities returns the entities req refers to, by ascending priority.
func (m *Manager) IdentifyEntities(req multitenant.Request) []identification.EntityInfo {
	return m.identification.ExtractEntityInfo(req, m.defs.Definitions())
}

// PrimaryEntity returns the highest-priority entity req refers to that is
// currently registered.
func (m *Manager) PrimaryEntity(req multitenant.Request) (*multitenant.EntityContext, identification.EntityInfo, bool) {
	for _, info := range m.IdentifyEntities(req) {
		if ec, ok := m.registry.Get(info.Type, info.ID); ok {
			return ec, info, true
		}
	}
	return nil, identification.EntityInfo{}, false
}

// GetEntity returns a registered entity.
func (m *Manager) GetEntity(entityType, id string) (*multitenant.EntityContext, bool) {
	return m.registry.Get(entityType, id)
}

// GetAllEntities returns every registered entity ordered by key.
func (m *Manager) GetAllEntities() []*multitenant.EntityContext {
	return m.registry.All()
}

// GetEntitiesByType returns the registered entities of entityType.
func (m *Manager) GetEntitiesByType(entityType string) []*multitenant.EntityContext {
	return m.registry.ByType(entityType)
}

// GetStats returns registry, cache and lifecycle statistics.
func (m *Manager) GetStats() Stats {
	states := make(map[string]int)
	for state, n := range m.lifecycle.Counts() {
		states[state.String()] = n
	}
	return Stats{
		Entities:    m.registry.Stats(),
		Cache:       m.resources.Stats(),
		States:      states,
		Definitions: len(m.defs.Definitions()),
	}
}

// State returns the lifecycle state of an entity.
func (m *Manager) State(entityType, id string) lifecycle.State {
	return m.lifecycle.State(entityType, id)
}

// RegisterObserver subscribes observer to lifecycle and registry events.
func (m *Manager) RegisterObserver(observer multitenant.Observer, eventTypes ...string) error {
	if err := m.lifecycle.RegisterObserver(observer, eventTypes...); err != nil {
		return err
	}
	return m.registry.RegisterObserver(observer, eventTypes...)
}

// UnregisterObserver removes observer from lifecycle and registry events.
func (m *Manager) UnregisterObserver(observer multitenant.Observer) error {
	return errors.Join(
		m.lifecycle.UnregisterObserver(observer),
		m.registry.UnregisterObserver(observer),
	)
}

// InvalidateEntity drops the cached resources of an entity and returns the
// number of entries removed.
func (m *Manager) InvalidateEntity(entityType, id string) int {
	return m.resources.InvalidateEntity(entityType, id)
}

// PruneCache removes expired resource cache entries.
func (m *Manager) PruneCache() int {
	return m.store.Prune()
}

func (m *Manager) definition(entityType string) (multitenant.EntityDefinition, error) {
	def, ok := m.defs.Definition(entityType)
	if !ok {
		return multitenant.EntityDefinition{}, fmt.Errorf("%w: %q", multitenant.ErrUnknownEntityType, entityType)
	}
	if def.Disabled {
		return multitenant.EntityDefinition{}, fmt.Errorf("%w: %q is disabled", multitenant.ErrUnknownEntityType, entityType)
	}
	return def, nil
}

// SourceFor returns the local source directory of an entity.
func SourceFor(def multitenant.EntityDefinition, id string) string {
	return path.Join(def.WithDefaults().BasePath, id)
}

// LoadEntity loads an entity from its directory under the type's base path.
// See LoadEntityFrom.
func (m *Manager) LoadEntity(ctx context.Context, entityType, id string) (*multitenant.EntityContext, error) {
	def, err := m.definition(entityType)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, def, SourceFor(def, id), id)
}

// LoadEntityFrom builds an entity from source under a load transition and
// registers it. An empty id is derived from source. It returns (nil, nil)
// when the entity's configuration is inactive; the entity then stays
// unloaded. A failed build leaves the entity in the error state and is
// counted in the registry history.
func (m *Manager) LoadEntityFrom(ctx context.Context, entityType, source, id string) (*multitenant.EntityContext, error) {
	def, err := m.definition(entityType)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, def, source, id)
}

func (m *Manager) load(ctx context.Context, def multitenant.EntityDefinition, source, id string) (*multitenant.EntityContext, error) {
	id, err := m.factory.ResolveID(def.Type, source, id)
	if err != nil {
		return nil, err
	}

	var loaded *multitenant.EntityContext
	result, err := m.lifecycle.Transition(ctx, def.Type, id, lifecycle.TransitionLoad, func(ctx context.Context) error {
		ec, err := m.factory.CreateEntity(ctx, def, source, id)
		if err != nil {
			return err
		}
		if ec == nil {
			return lifecycle.Abort(fmt.Errorf("%w: %s", multitenant.ErrEntityInactive, multitenant.EntityKey(def.Type, id)))
		}
		if err := m.registry.Register(ctx, ec); err != nil {
			m.resources.InvalidateEntity(def.Type, id)
			m.releaseRoutes(ctx, def.Type, id, ec.Routes)
			return err
		}
		loaded = ec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loaded != nil && !result.Success {
		// The entity was flagged while its load ran.
		m.registry.Unregister(ctx, def.Type, id)
		m.resources.InvalidateEntity(def.Type, id)
		m.releaseRoutes(ctx, def.Type, id, loaded.Routes)
	}

	switch {
	case result.Success:
		m.registry.RecordLoaded()
		m.logger.Info("Entity loaded", "entityType", def.Type, "entityID", id, "adapter", loaded.Adapter)
		return loaded, nil
	case result.Aborted && errors.Is(result.Err, multitenant.ErrEntityInactive):
		return nil, nil
	default:
		m.registry.RecordFailed()
		return nil, fmt.Errorf("load %s: %w", multitenant.EntityKey(def.Type, id), result.Err)
	}
}

// ReloadEntity rebuilds an active entity from its original source under a
// reload transition. The entity's cached resources are invalidated first.
// When the rebuild fails, or yields an inactive configuration, the previous
// context is registered again, the entity stays active and the returned
// error wraps ErrReloadRolledBack.
func (m *Manager) ReloadEntity(ctx context.Context, entityType, id string) (*multitenant.EntityContext, error) {
	def, err := m.definition(entityType)
	if err != nil {
		return nil, err
	}

	var reloaded *multitenant.EntityContext
	result, err := m.lifecycle.Transition(ctx, entityType, id, lifecycle.TransitionReload, func(ctx context.Context) error {
		old, ok := m.registry.Unregister(ctx, entityType, id)
		if !ok {
			return fmt.Errorf("%w: %s", multitenant.ErrEntityNotRegistered, multitenant.EntityKey(entityType, id))
		}
		m.resources.InvalidateEntity(entityType, id)

		source := old.Config.Source
		if source == "" {
			source = SourceFor(def, id)
		}
		ec, err := m.factory.CreateEntity(ctx, def, source, id)
		if err == nil && ec == nil {
			err = fmt.Errorf("%w: %s", multitenant.ErrEntityInactive, multitenant.EntityKey(entityType, id))
		}
		if err == nil {
			err = m.registry.Register(ctx, ec)
		}
		if err != nil {
			if rerr := m.registry.Register(ctx, old); rerr != nil {
				return errors.Join(err, rerr)
			}
			m.logger.Warn("Entity reload failed, previous instance restored", "entityType", entityType, "entityID", id, "error", err)
			return lifecycle.Abort(fmt.Errorf("%w: %w", multitenant.ErrReloadRolledBack, err))
		}
		m.releaseRoutes(ctx, entityType, id, staleRoutes(old.Routes, ec.Routes))
		reloaded = ec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Success {
		m.registry.RecordFailed()
		return nil, fmt.Errorf("reload %s: %w", multitenant.EntityKey(entityType, id), result.Err)
	}
	m.registry.RecordReloaded()
	m.logger.Info("Entity reloaded", "entityType", entityType, "entityID", id)
	return reloaded, nil
}

// UnloadEntity runs the unload transition: the entity is unregistered, its
// routes stop being served and its cached resources are dropped.
func (m *Manager) UnloadEntity(ctx context.Context, entityType, id string) error {
	result, err := m.lifecycle.Transition(ctx, entityType, id, lifecycle.TransitionUnload, func(ctx context.Context) error {
		if ec, ok := m.registry.Unregister(ctx, entityType, id); ok {
			m.releaseRoutes(ctx, entityType, id, ec.Routes)
		}
		m.resources.InvalidateEntity(entityType, id)
		return nil
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("unload %s: %w", multitenant.EntityKey(entityType, id), result.Err)
	}
	m.logger.Info("Entity unloaded", "entityType", entityType, "entityID", id)
	return nil
}

// releaseRoutes unregisters the route prefixes of an entity. Failures are
// logged; the entity's state change goes ahead.
func (m *Manager) releaseRoutes(ctx context.Context, entityType, id string, prefixes []string) {
	if m.routes == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := m.routes.UnregisterRoutes(ctx, prefix); err != nil {
			m.logger.Warn("Failed to remove entity routes", "entityType", entityType, "entityID", id, "prefix", prefix, "error", err)
		}
	}
}

// staleRoutes returns the prefixes of old missing from current.
func staleRoutes(old, current []string) []string {
	var out []string
	for _, p := range old {
		if !slices.Contains(current, p) {
			out = append(out, p)
		}
	}
	return out
}

// SuspendEntity marks an active entity suspended. It stays registered.
func (m *Manager) SuspendEntity(ctx context.Context, entityType, id string) error {
	return m.setActive(ctx, entityType, id, lifecycle.TransitionSuspend, false)
}

// ResumeEntity reactivates a suspended entity.
func (m *Manager) ResumeEntity(ctx context.Context, entityType, id string) error {
	return m.setActive(ctx, entityType, id, lifecycle.TransitionResume, true)
}

func (m *Manager) setActive(ctx context.Context, entityType, id string, name lifecycle.TransitionName, active bool) error {
	result, err := m.lifecycle.Transition(ctx, entityType, id, name, func(context.Context) error {
		if !m.registry.SetActive(entityType, id, active) {
			return lifecycle.Abort(fmt.Errorf("%w: %s", multitenant.ErrEntityNotRegistered, multitenant.EntityKey(entityType, id)))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s %s: %w", name, multitenant.EntityKey(entityType, id), result.Err)
	}
	return nil
}

// LoadAllEntities discovers and loads the entities of every enabled
// definition, in definition order. A failing entity is recorded in the
// summary and the remaining entities are still loaded.
func (m *Manager) LoadAllEntities(ctx context.Context) LoadSummary {
	summary := LoadSummary{
		Loaded:   []multitenant.EntityRef{},
		Inactive: []multitenant.EntityRef{},
		Failed:   map[string]string{},
	}

	for _, def := range m.defs.Definitions() {
		if def.Disabled {
			continue
		}
		basePath := def.WithDefaults().BasePath

		for _, id := range m.discover(ctx, def, basePath) {
			ref := multitenant.EntityRef{Type: def.Type, ID: id}
			ec, err := m.load(ctx, def, path.Join(basePath, id), id)
			switch {
			case err != nil:
				summary.Failed[ref.Key()] = err.Error()
				m.logger.Error("Failed to load entity", "entityType", def.Type, "entityID", id, "error", err)
			case ec == nil:
				summary.Inactive = append(summary.Inactive, ref)
			default:
				summary.Loaded = append(summary.Loaded, ref)
			}
		}
	}

	m.logger.Info("Entities loaded", "loaded", len(summary.Loaded), "inactive", len(summary.Inactive), "failed", len(summary.Failed))
	return summary
}

func (m *Manager) discover(ctx context.Context, def multitenant.EntityDefinition, basePath string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range m.factory.Adapters() {
		d, ok := a.(Discoverer)
		if !ok {
			continue
		}
		found, err := d.Discover(ctx, basePath)
		if err != nil {
			m.logger.Warn("Entity discovery failed", "entityType", def.Type, "adapter", a.Name(), "error", err)
			continue
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
