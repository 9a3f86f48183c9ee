package resources

import (
	"context"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// Category names a resource category.
type Category string

const (
	CategorySchemas  Category = "schemas"
	CategoryServices Category = "services"
	CategoryPlugins  Category = "plugins"
	CategoryRoutes   Category = "routes"
)

// Categories lists every category in load order.
func Categories() []Category {
	return []Category{CategorySchemas, CategoryServices, CategoryPlugins, CategoryRoutes}
}

// Target is the entity a strategy loads resources for. Path is the
// entity's own resource directory, relative to the fetcher root.
type Target struct {
	Type       string
	ID         string
	Path       string
	Definition multitenant.EntityDefinition
}

// Strategy loads each resource category for a target.
type Strategy interface {
	LoadSchemas(ctx context.Context, target Target) Result[[]string]
	LoadServices(ctx context.Context, target Target) Result[map[string]any]
	LoadPlugins(ctx context.Context, target Target) Result[[]string]
	LoadRoutes(ctx context.Context, target Target) Result[bool]
}

// Bundle is the combined result of loading every category for one target.
type Bundle struct {
	Schemas      []string
	Services     map[string]any
	Plugins      []string
	RoutesLoaded bool
}

// LoadAll loads every category through s. A failing category leaves its
// empty value in the bundle and is reported in the returned map; the other
// categories are still loaded.
func LoadAll(ctx context.Context, s Strategy, target Target) (Bundle, map[Category]error) {
	bundle := Bundle{
		Schemas:  []string{},
		Services: map[string]any{},
		Plugins:  []string{},
	}
	failures := make(map[Category]error)

	if r := s.LoadSchemas(ctx, target); r.Success() {
		bundle.Schemas = r.Value
	} else {
		failures[CategorySchemas] = r.Err
	}
	if r := s.LoadServices(ctx, target); r.Success() {
		bundle.Services = r.Value
	} else {
		failures[CategoryServices] = r.Err
	}
	if r := s.LoadPlugins(ctx, target); r.Success() {
		bundle.Plugins = r.Value
	} else {
		failures[CategoryPlugins] = r.Err
	}
	if r := s.LoadRoutes(ctx, target); r.Success() {
		bundle.RoutesLoaded = r.Value
	} else {
		failures[CategoryRoutes] = r.Err
	}

	if bundle.Schemas == nil {
		bundle.Schemas = []string{}
	}
	if bundle.Services == nil {
		bundle.Services = map[string]any{}
	}
	if bundle.Plugins == nil {
		bundle.Plugins = []string{}
	}
	return bundle, failures
}
