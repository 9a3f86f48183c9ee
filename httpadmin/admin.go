// Package httpadmin exposes the entity core over HTTP: an inspection and
// control router, a middleware resolving the entity of each request, and a
// route registrar serving entity routes through chi sub-routers.
package httpadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/identification"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/lifecycle"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/orchestrator"
)

// EntityManager is the part of the orchestrator the admin surface uses.
type EntityManager interface {
	IdentifyEntities(req multitenant.Request) []identification.EntityInfo
	PrimaryEntity(req multitenant.Request) (*multitenant.EntityContext, identification.EntityInfo, bool)
	GetEntity(entityType, id string) (*multitenant.EntityContext, bool)
	GetAllEntities() []*multitenant.EntityContext
	GetEntitiesByType(entityType string) []*multitenant.EntityContext
	GetStats() orchestrator.Stats
	State(entityType, id string) lifecycle.State
	LoadEntity(ctx context.Context, entityType, id string) (*multitenant.EntityContext, error)
	ReloadEntity(ctx context.Context, entityType, id string) (*multitenant.EntityContext, error)
	UnloadEntity(ctx context.Context, entityType, id string) error
	SuspendEntity(ctx context.Context, entityType, id string) error
	ResumeEntity(ctx context.Context, entityType, id string) error
}

var _ EntityManager = (*orchestrator.Manager)(nil)

// EntityView is the JSON form of a live entity.
type EntityView struct {
	*multitenant.EntityContext
	State    string   `json:"state"`
	Services []string `json:"services"`
}

// Admin serves the admin routes.
type Admin struct {
	manager EntityManager
	logger  multitenant.Logger
}

// NewRouter returns a chi router with the admin routes:
//
//	GET  /identify
//	GET  /stats
//	GET  /entities
//	GET  /entities/{type}
//	GET  /entities/{type}/{id}
//	POST /entities/{type}/{id}/{load|reload|unload|suspend|resume}
func NewRouter(manager EntityManager, logger multitenant.Logger) chi.Router {
	a := &Admin{manager: manager, logger: multitenant.LoggerOrNop(logger)}

	r := chi.NewRouter()
	r.Get("/identify", a.handleIdentify)
	r.Get("/stats", a.handleStats)
	r.Route("/entities", func(r chi.Router) {
		r.Get("/", a.handleList)
		r.Get("/{type}", a.handleListByType)
		r.Get("/{type}/{id}", a.handleGet)
		r.Post("/{type}/{id}/load", a.handleLoad)
		r.Post("/{type}/{id}/reload", a.handleReload)
		r.Post("/{type}/{id}/unload", a.lifecycleAction("unload", a.manager.UnloadEntity))
		r.Post("/{type}/{id}/suspend", a.lifecycleAction("suspend", a.manager.SuspendEntity))
		r.Post("/{type}/{id}/resume", a.lifecycleAction("resume", a.manager.ResumeEntity))
	})
	return r
}

func (a *Admin) view(ec *multitenant.EntityContext) EntityView {
	return EntityView{
		EntityContext: ec,
		State:         a.manager.State(ec.Type, ec.ID).String(),
		Services:      ec.ServiceNames(),
	}
}

func (a *Admin) views(ecs []*multitenant.EntityContext) []EntityView {
	out := make([]EntityView, 0, len(ecs))
	for _, ec := range ecs {
		out = append(out, a.view(ec))
	}
	return out
}

func (a *Admin) handleIdentify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": a.manager.IdentifyEntities(multitenant.FromHTTPRequest(r)),
	})
}

func (a *Admin) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.GetStats())
}

func (a *Admin) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entities": a.views(a.manager.GetAllEntities())})
}

func (a *Admin) handleListByType(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "type")
	writeJSON(w, http.StatusOK, map[string]any{"entities": a.views(a.manager.GetEntitiesByType(entityType))})
}

func (a *Admin) handleGet(w http.ResponseWriter, r *http.Request) {
	entityType, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	ec, ok := a.manager.GetEntity(entityType, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "entity not found",
			"state": a.manager.State(entityType, id).String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, a.view(ec))
}

func (a *Admin) handleLoad(w http.ResponseWriter, r *http.Request) {
	entityType, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	ec, err := a.manager.LoadEntity(r.Context(), entityType, id)
	if err != nil {
		a.writeError(w, "load", entityType, id, err)
		return
	}
	if ec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"type": entityType, "id": id, "inactive": true})
		return
	}
	writeJSON(w, http.StatusCreated, a.view(ec))
}

func (a *Admin) handleReload(w http.ResponseWriter, r *http.Request) {
	entityType, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	ec, err := a.manager.ReloadEntity(r.Context(), entityType, id)
	if err != nil {
		a.writeError(w, "reload", entityType, id, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(ec))
}

func (a *Admin) lifecycleAction(action string, fn func(ctx context.Context, entityType, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
		if err := fn(r.Context(), entityType, id); err != nil {
			a.writeError(w, action, entityType, id, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":  entityType,
			"id":    id,
			"state": a.manager.State(entityType, id).String(),
		})
	}
}

func (a *Admin) writeError(w http.ResponseWriter, action, entityType, id string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("Admin action failed", "action", action, "entityType", entityType, "entityID", id, "error", err)
	} else {
		a.logger.Debug("Admin action rejected", "action", action, "entityType", entityType, "entityID", id, "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// StatusFor maps an entity core error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, multitenant.ErrUnknownEntityType), errors.Is(err, multitenant.ErrNoAdapter):
		return http.StatusNotFound
	case errors.Is(err, multitenant.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, multitenant.ErrCapacityExceeded),
		errors.Is(err, multitenant.ErrReloadRolledBack):
		return http.StatusConflict
	case errors.Is(err, multitenant.ErrEntity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
