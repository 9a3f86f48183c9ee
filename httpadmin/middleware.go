package httpadmin

import (
	"context"
	"net/http"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

type entityContextKey struct{}

// EntityContextFrom returns the live entity placed in ctx by Middleware.
func EntityContextFrom(ctx context.Context) (*multitenant.EntityContext, bool) {
	ec, ok := ctx.Value(entityContextKey{}).(*multitenant.EntityContext)
	return ec, ok
}

// Middleware resolves the highest-priority registered entity of each
// request and carries it in the request context. Requests matching no
// registered entity pass through unchanged.
func Middleware(manager EntityManager, logger multitenant.Logger) func(http.Handler) http.Handler {
	logger = multitenant.LoggerOrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ec, _, ok := manager.PrimaryEntity(multitenant.FromHTTPRequest(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			logger.Debug("Resolved request entity", "entityType", ec.Type, "entityID", ec.ID, "path", r.URL.Path)
			ctx := multitenant.NewEntityRequestContext(r.Context(), multitenant.EntityRef{Type: ec.Type, ID: ec.ID})
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, entityContextKey{}, ec)))
		})
	}
}

// RequireEntity is Middleware that rejects requests matching no registered
// entity with 404.
func RequireEntity(manager EntityManager, logger multitenant.Logger) func(http.Handler) http.Handler {
	resolve := Middleware(manager, logger)
	return func(next http.Handler) http.Handler {
		guard := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := EntityContextFrom(r.Context()); !ok {
				writeJSON(w, http.StatusNotFound, map[string]any{"error": "no entity matches the request"})
				return
			}
			next.ServeHTTP(w, r)
		})
		return resolve(guard)
	}
}
