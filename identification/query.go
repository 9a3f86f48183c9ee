package identification

import (
	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// Query identifies entities by a query parameter named after the entity
// type unless configured otherwise.
type Query struct{}

var _ Strategy = Query{}

// NewQuery creates a Query strategy.
func NewQuery() Query {
	return Query{}
}

// ExtractID returns the parameter value, or the configured default.
func (Query) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	param := def.Identification.Parameter
	if param == "" {
		param = def.Type
	}
	if v := req.Query(param); v != "" {
		return v, nil
	}
	return def.Identification.Default, nil
}

// ValidateConfig requires a parameter name or an entity type to derive it from.
func (Query) ValidateConfig(def multitenant.EntityDefinition) bool {
	return def.Identification.Parameter != "" || def.Type != ""
}
