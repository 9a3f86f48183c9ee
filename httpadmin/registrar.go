package httpadmin

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

// ChiRouteRegistrar serves declarative entity routes. It is an
// http.Handler mounted once on the serving router, usually as
// router.Handle("/*", registrar); registering and unregistering prefixes
// only touches its own table, never the serving router's tree.
//
// Registering a prefix again replaces the routes served under it, so an
// entity reload picks up changed route files.
type ChiRouteRegistrar struct {
	logger multitenant.Logger

	mu     sync.RWMutex
	mounts map[string]*chi.Mux
}

var (
	_ resources.RouteRegistrar = (*ChiRouteRegistrar)(nil)
	_ http.Handler             = (*ChiRouteRegistrar)(nil)
)

// NewChiRouteRegistrar creates an empty registrar.
func NewChiRouteRegistrar(logger multitenant.Logger) *ChiRouteRegistrar {
	return &ChiRouteRegistrar{
		logger: multitenant.LoggerOrNop(logger),
		mounts: make(map[string]*chi.Mux),
	}
}

var routeMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

// RegisterRoutes builds a router for mount and serves it under
// mount.Prefix. Routes with an unsupported method are skipped.
func (c *ChiRouteRegistrar) RegisterRoutes(_ context.Context, mount resources.RouteMount) error {
	prefix := normalizePrefix(mount.Prefix)
	sub := chi.NewRouter()
	for _, route := range mount.Routes {
		method := strings.ToUpper(route.Method)
		if method == "" {
			method = http.MethodGet
		}
		if !routeMethods[method] {
			c.logger.Warn("Skipping entity route with unsupported method", "prefix", prefix, "method", route.Method, "path", route.Path)
			continue
		}
		pattern := route.Path
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}
		if prefix != "/" {
			pattern = strings.TrimSuffix(prefix+pattern, "/")
		}
		sub.MethodFunc(method, pattern, routeHandler(route))
	}

	c.mu.Lock()
	_, replaced := c.mounts[prefix]
	c.mounts[prefix] = sub
	c.mu.Unlock()

	if replaced {
		c.logger.Debug("Replaced entity routes", "prefix", prefix, "routes", len(mount.Routes))
		return nil
	}
	c.logger.Debug("Mounted entity routes", "prefix", prefix, "entityType", mount.Target.Type,
		"entityID", mount.Target.ID, "routes", len(mount.Routes))
	return nil
}

// UnregisterRoutes stops serving prefix. Unknown prefixes are ignored.
func (c *ChiRouteRegistrar) UnregisterRoutes(_ context.Context, prefix string) error {
	prefix = normalizePrefix(prefix)
	c.mu.Lock()
	_, ok := c.mounts[prefix]
	delete(c.mounts, prefix)
	c.mu.Unlock()

	if ok {
		c.logger.Debug("Removed entity routes", "prefix", prefix)
	}
	return nil
}

// Prefixes returns the mounted prefixes.
func (c *ChiRouteRegistrar) Prefixes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.mounts))
	for p := range c.mounts {
		out = append(out, p)
	}
	return out
}

// ServeHTTP dispatches to the routes of the longest registered prefix
// containing the request path, or answers 404.
func (c *ChiRouteRegistrar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub := c.lookup(r.URL.Path)
	if sub == nil {
		http.NotFound(w, r)
		return
	}
	// Entity patterns carry the full prefix, so match on the whole path
	// even when a parent router already consumed part of it.
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		rctx.RoutePath = r.URL.Path
	}
	sub.ServeHTTP(w, r)
}

func (c *ChiRouteRegistrar) lookup(urlPath string) *chi.Mux {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best    *chi.Mux
		bestLen = -1
	)
	for prefix, sub := range c.mounts {
		if !underPrefix(urlPath, prefix) || len(prefix) <= bestLen {
			continue
		}
		best, bestLen = sub, len(prefix)
	}
	return best
}

func normalizePrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimSuffix(prefix, "/")
	}
	return prefix
}

func underPrefix(urlPath, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
}

func routeHandler(route resources.Route) http.HandlerFunc {
	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		if s, ok := route.Body.(string); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(s))
			return
		}
		writeJSON(w, status, route.Body)
	}
}
