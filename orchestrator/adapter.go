// Package orchestrator builds entity instances from their sources and drives
// them through the lifecycle, keeping the registry, the resource cache and
// the state machine consistent with each other.
package orchestrator

import (
	"context"
	"path"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

// Capabilities describes what an adapter supports.
type Capabilities struct {
	Local     bool `json:"local"`
	Remote    bool `json:"remote"`
	Discovery bool `json:"discovery"`
}

// Adapter turns an entity source into configuration and resources.
type Adapter interface {
	Name() string

	// CanHandle reports whether source is one this adapter understands.
	CanHandle(source string) bool

	// LoadConfig reads the entity configuration found at source. Fields
	// absent from the source keep their value from defaults.
	LoadConfig(ctx context.Context, source string, defaults multitenant.EntityConfig) (multitenant.EntityConfig, error)

	// LoadResources loads every resource category for ec through strategy.
	// Category failures are reported per category; they do not stop the
	// other categories.
	LoadResources(ctx context.Context, ec *multitenant.EntityContext, def multitenant.EntityDefinition, strategy resources.Strategy) (resources.Bundle, map[resources.Category]error)

	Capabilities() Capabilities
}

// Discoverer is implemented by adapters that can list the entity ids found
// under a base path.
type Discoverer interface {
	Discover(ctx context.Context, basePath string) ([]string, error)
}

// Remote source prefixes.
const (
	PackagePrefix = "pkg:"
	NPMPrefix     = "npm:"
)

// IsRemote reports whether source names a remote package.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, PackagePrefix) || strings.HasPrefix(source, NPMPrefix)
}

// PackageName strips the remote prefix from source.
func PackageName(source string) string {
	for _, prefix := range []string{PackagePrefix, NPMPrefix} {
		if strings.HasPrefix(source, prefix) {
			return strings.TrimPrefix(source, prefix)
		}
	}
	return source
}

// DeriveID returns the entity id implied by source: the last path element
// of a directory or of a package name without its scope or version.
func DeriveID(source string) string {
	name := PackageName(source)
	if IsRemote(source) {
		if i := strings.LastIndex(name, "@"); i > 0 {
			name = name[:i]
		}
	}
	base := path.Base(strings.TrimRight(name, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func loadTarget(ec *multitenant.EntityContext, def multitenant.EntityDefinition) resources.Target {
	dir := ec.Config.Path
	if dir == "" {
		dir = ec.Config.Source
	}
	return resources.Target{Type: ec.Type, ID: ec.ID, Path: dir, Definition: def}
}
