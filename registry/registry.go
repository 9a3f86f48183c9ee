// Package registry holds the live entity instances of a process and
// enforces the per-type instance limit of each entity definition.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// EventSource is the CloudEvents source of registry events.
const EventSource = "multitenant.registry"

// History holds cumulative counters that survive unregistration.
type History struct {
	Loaded   int64 `json:"loaded"`
	Failed   int64 `json:"failed"`
	Reloaded int64 `json:"reloaded"`
}

// Stats is a snapshot of the registry.
type Stats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByType   map[string]int `json:"byType"`
	History  History        `json:"history"`
}

// Registry maps "type:id" keys to live entity contexts.
type Registry struct {
	*multitenant.Observable

	mu       sync.RWMutex
	entities map[string]*multitenant.EntityContext
	defs     multitenant.DefinitionLookup
	history  History
	logger   multitenant.Logger
}

// New creates an empty registry. defs supplies the per-type instance
// limit; types it does not know, or a nil defs, use the default limit.
func New(defs multitenant.DefinitionLookup, logger multitenant.Logger) *Registry {
	logger = multitenant.LoggerOrNop(logger)
	return &Registry{
		Observable: multitenant.NewObservable(EventSource, logger),
		entities:   make(map[string]*multitenant.EntityContext),
		defs:       defs,
		logger:     logger,
	}
}

// Capacity returns the instance limit of entityType.
func (r *Registry) Capacity(entityType string) int {
	if r.defs != nil {
		if def, ok := r.defs.Definition(entityType); ok {
			return def.EffectiveMaxInstances()
		}
	}
	return multitenant.DefaultMaxInstances
}

// Register adds ec. Registering a key that is already present replaces the
// existing context without a capacity check. Adding a new instance beyond
// the type's limit fails with ErrCapacityExceeded.
func (r *Registry) Register(ctx context.Context, ec *multitenant.EntityContext) error {
	if ec == nil {
		return multitenant.ErrEntityContextNil
	}
	key := ec.Key()

	r.mu.Lock()
	_, replacing := r.entities[key]
	if !replacing {
		limit := r.Capacity(ec.Type)
		if count := r.countLocked(ec.Type); count >= limit {
			r.mu.Unlock()
			return fmt.Errorf("%w: entity type %q allows at most %d instances", multitenant.ErrCapacityExceeded, ec.Type, limit)
		}
	}
	r.entities[key] = ec
	r.mu.Unlock()

	r.logger.Debug("Registered entity", "entityType", ec.Type, "entityID", ec.ID, "replaced", replacing)
	r.Emit(ctx, multitenant.EventTypeEntityRegistered, map[string]any{
		"entityType": ec.Type, "entityId": ec.ID, "instanceId": ec.InstanceID, "replaced": replacing,
	}, map[string]any{"entitytype": ec.Type, "entityid": ec.ID})
	return nil
}

// Unregister removes and returns the context stored for (entityType, id).
func (r *Registry) Unregister(ctx context.Context, entityType, id string) (*multitenant.EntityContext, bool) {
	key := multitenant.EntityKey(entityType, id)

	r.mu.Lock()
	ec, ok := r.entities[key]
	delete(r.entities, key)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("Unregistered entity", "entityType", entityType, "entityID", id)
		r.Emit(ctx, multitenant.EventTypeEntityUnregistered, map[string]any{
			"entityType": entityType, "entityId": id, "instanceId": ec.InstanceID,
		}, map[string]any{"entitytype": entityType, "entityid": id})
	}
	return ec, ok
}

// Get returns the context stored for (entityType, id).
func (r *Registry) Get(entityType, id string) (*multitenant.EntityContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.entities[multitenant.EntityKey(entityType, id)]
	return ec, ok
}

// SetActive marks a registered entity active or suspended. It reports
// false when the entity is not registered.
func (r *Registry) SetActive(entityType, id string, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ec, ok := r.entities[multitenant.EntityKey(entityType, id)]
	if ok {
		ec.Active = active
	}
	return ok
}

// Has reports whether (entityType, id) is registered.
func (r *Registry) Has(entityType, id string) bool {
	_, ok := r.Get(entityType, id)
	return ok
}

// All returns every registered context ordered by key.
func (r *Registry) All() []*multitenant.EntityContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(*multitenant.EntityContext) bool { return true })
}

// ByType returns the registered contexts of entityType ordered by id.
func (r *Registry) ByType(entityType string) []*multitenant.EntityContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(func(ec *multitenant.EntityContext) bool { return ec.Type == entityType })
}

// Count returns the number of registered contexts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// CountByType returns the number of registered contexts of entityType.
func (r *Registry) CountByType(entityType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(entityType)
}

// RecordLoaded increments the loaded counter.
func (r *Registry) RecordLoaded() {
	r.mu.Lock()
	r.history.Loaded++
	r.mu.Unlock()
}

// RecordFailed increments the failed counter.
func (r *Registry) RecordFailed() {
	r.mu.Lock()
	r.history.Failed++
	r.mu.Unlock()
}

// RecordReloaded increments the reloaded counter.
func (r *Registry) RecordReloaded() {
	r.mu.Lock()
	r.history.Reloaded++
	r.mu.Unlock()
}

// Stats returns totals, active and inactive counts, counts per type and
// the cumulative history.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:   len(r.entities),
		ByType:  make(map[string]int),
		History: r.history,
	}
	for _, ec := range r.entities {
		if ec.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
		stats.ByType[ec.Type]++
	}
	return stats
}

func (r *Registry) countLocked(entityType string) int {
	n := 0
	for _, ec := range r.entities {
		if ec.Type == entityType {
			n++
		}
	}
	return n
}

func (r *Registry) sortedLocked(keep func(*multitenant.EntityContext) bool) []*multitenant.EntityContext {
	keys := make([]string, 0, len(r.entities))
	for k, ec := range r.entities {
		if keep(ec) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]*multitenant.EntityContext, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.entities[k])
	}
	return out
}
