package multitenant

import (
	"context"
)

// EntityRef identifies an entity instance by type and id.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Key returns the "type:id" key of the reference.
func (r EntityRef) Key() string {
	return EntityKey(r.Type, r.ID)
}

// EntityRequestContext is a context that carries the entity resolved for the
// current request through the call chain.
//
// Example:
//
//	ctx := multitenant.NewEntityRequestContext(r.Context(), multitenant.EntityRef{Type: "tenant", ID: "acme"})
//	if ref, ok := multitenant.EntityFromContext(ctx); ok {
//	    // entity-specific handling
//	}
type EntityRequestContext struct {
	context.Context
	ref EntityRef
}

// NewEntityRequestContext creates a context carrying ref.
func NewEntityRequestContext(ctx context.Context, ref EntityRef) *EntityRequestContext {
	return &EntityRequestContext{
		Context: ctx,
		ref:     ref,
	}
}

// Entity returns the entity reference carried by the context.
func (c *EntityRequestContext) Entity() EntityRef {
	return c.ref
}

type entityCtxKey struct{}

// Value exposes the entity reference to wrapped contexts.
func (c *EntityRequestContext) Value(key any) any {
	if _, ok := key.(entityCtxKey); ok {
		return c.ref
	}
	return c.Context.Value(key)
}

// EntityFromContext extracts the entity reference from ctx. It also finds
// the reference when the EntityRequestContext has since been wrapped by
// other contexts (for example by context.WithCancel).
func EntityFromContext(ctx context.Context) (EntityRef, bool) {
	if ec, ok := ctx.(*EntityRequestContext); ok {
		return ec.Entity(), true
	}
	if ref, ok := ctx.Value(entityCtxKey{}).(EntityRef); ok {
		return ref, true
	}
	return EntityRef{}, false
}
