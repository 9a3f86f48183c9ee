package resources

import (
	"context"
	"maps"
	"slices"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/cache"
)

// Caching wraps a Strategy and keeps successful category loads in a cache
// store keyed by category, entity type, entity id and entity path. Failed
// loads are never cached. Values handed out are copies, so callers may
// modify them freely.
type Caching struct {
	inner  Strategy
	store  *cache.Store[any]
	logger multitenant.Logger
}

var _ Strategy = (*Caching)(nil)

// NewCaching creates a caching decorator around inner.
func NewCaching(inner Strategy, store *cache.Store[any], logger multitenant.Logger) (*Caching, error) {
	if inner == nil {
		return nil, multitenant.ErrNilResourceStrategy
	}
	if store == nil {
		return nil, multitenant.ErrNilStore
	}
	return &Caching{inner: inner, store: store, logger: multitenant.LoggerOrNop(logger)}, nil
}

// CacheKey returns the cache key for one category load of target.
func CacheKey(category Category, target Target) string {
	return strings.Join([]string{string(category), target.Type, target.ID, target.Path}, ":")
}

// cached serves a category from the store or loads it through load.
func cached[T any](c *Caching, category Category, target Target, clone func(T) T, load func() Result[T]) Result[T] {
	key := CacheKey(category, target)
	if v, ok := c.store.Get(key); ok {
		if typed, ok := v.(T); ok {
			return Ok(clone(typed))
		}
		c.store.Delete(key)
	}

	r := load()
	if r.Success() {
		c.store.Set(key, clone(r.Value))
	} else {
		c.logger.Debug("Not caching failed resource load", "key", key, "error", r.Err)
	}
	return r
}

func identity[T any](v T) T { return v }

func cloneList(v []string) []string { return slices.Clone(v) }

func cloneMap(v map[string]any) map[string]any { return maps.Clone(v) }

// LoadSchemas returns cached schemas or delegates.
func (c *Caching) LoadSchemas(ctx context.Context, target Target) Result[[]string] {
	return cached(c, CategorySchemas, target, cloneList, func() Result[[]string] {
		return c.inner.LoadSchemas(ctx, target)
	})
}

// LoadServices returns cached services or delegates.
func (c *Caching) LoadServices(ctx context.Context, target Target) Result[map[string]any] {
	return cached(c, CategoryServices, target, cloneMap, func() Result[map[string]any] {
		return c.inner.LoadServices(ctx, target)
	})
}

// LoadPlugins returns cached plugins or delegates.
func (c *Caching) LoadPlugins(ctx context.Context, target Target) Result[[]string] {
	return cached(c, CategoryPlugins, target, cloneList, func() Result[[]string] {
		return c.inner.LoadPlugins(ctx, target)
	})
}

// LoadRoutes returns the cached registration flag or delegates. A cached
// true means the routes were registered by an earlier load and are not
// registered again.
func (c *Caching) LoadRoutes(ctx context.Context, target Target) Result[bool] {
	return cached(c, CategoryRoutes, target, identity[bool], func() Result[bool] {
		return c.inner.LoadRoutes(ctx, target)
	})
}

func (c *Caching) invalidate(match func(parts []string) bool) int {
	return c.store.DeleteFunc(func(key string) bool {
		parts := strings.SplitN(key, ":", 4)
		return len(parts) == 4 && match(parts)
	})
}

// InvalidateType drops every entry of entityType and returns how many were removed.
func (c *Caching) InvalidateType(entityType string) int {
	n := c.invalidate(func(parts []string) bool { return parts[1] == entityType })
	c.logger.Debug("Invalidated resource cache", "entityType", entityType, "entries", n)
	return n
}

// InvalidateEntity drops every entry of one entity and returns how many were removed.
func (c *Caching) InvalidateEntity(entityType, id string) int {
	n := c.invalidate(func(parts []string) bool { return parts[1] == entityType && parts[2] == id })
	c.logger.Debug("Invalidated resource cache", "entityType", entityType, "entityID", id, "entries", n)
	return n
}

// InvalidateAll empties the cache.
func (c *Caching) InvalidateAll() {
	c.store.Clear()
}

// Entries describes the cached entries for diagnostics.
func (c *Caching) Entries() []cache.EntryInfo {
	return c.store.Entries()
}

// Stats returns the statistics of the underlying store.
func (c *Caching) Stats() cache.Stats {
	return c.store.Stats()
}
