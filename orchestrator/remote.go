package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

// PackageFetcher resolves a package name to a directory of the adapter's
// file system, fetching the package first if needed.
type PackageFetcher interface {
	Fetch(ctx context.Context, name string) (dir string, err error)
}

// PackageFetcherFunc adapts a function to PackageFetcher.
type PackageFetcherFunc func(ctx context.Context, name string) (string, error)

// Fetch calls f.
func (f PackageFetcherFunc) Fetch(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// DirPackageFetcher resolves packages already present under Root, one
// directory per package name. Scoped names such as "@acme/tenant" map to
// nested directories.
type DirPackageFetcher struct {
	FS   fs.FS
	Root string
}

// Fetch returns Root/name if it is a directory.
func (d DirPackageFetcher) Fetch(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := path.Join(d.Root, name)
	info, err := fs.Stat(d.FS, resources.FSPath(dir))
	if err != nil {
		return "", fmt.Errorf("package %s: %w", name, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("package %s: %s is not a directory", name, dir)
	}
	return dir, nil
}

// RemoteAdapter loads entities published as packages. Sources have the
// form "pkg:<name>" or "npm:<name>[@version]".
type RemoteAdapter struct {
	fsys    fs.FS
	fetcher PackageFetcher
}

var _ Adapter = (*RemoteAdapter)(nil)

// NewRemoteAdapter creates an adapter that resolves packages with fetcher
// and reads them from fsys.
func NewRemoteAdapter(fsys fs.FS, fetcher PackageFetcher) (*RemoteAdapter, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: package fetcher is nil", multitenant.ErrContractViolation)
	}
	return &RemoteAdapter{fsys: fsys, fetcher: fetcher}, nil
}

// Name returns "remote".
func (a *RemoteAdapter) Name() string {
	return "remote"
}

// CanHandle reports whether source carries a package prefix.
func (a *RemoteAdapter) CanHandle(source string) bool {
	return IsRemote(source) && PackageName(source) != ""
}

// LoadConfig fetches the package and decodes its configuration file over
// defaults.
func (a *RemoteAdapter) LoadConfig(ctx context.Context, source string, defaults multitenant.EntityConfig) (multitenant.EntityConfig, error) {
	dir, err := a.fetcher.Fetch(ctx, PackageName(source))
	if err != nil {
		return multitenant.EntityConfig{}, err
	}
	cfg, err := readEntityConfig(ctx, a.fsys, dir, defaults)
	if err != nil {
		return multitenant.EntityConfig{}, err
	}
	cfg.Source = source
	cfg.Path = dir
	return cfg, nil
}

// LoadResources loads the entity's resources from the fetched package.
func (a *RemoteAdapter) LoadResources(ctx context.Context, ec *multitenant.EntityContext, def multitenant.EntityDefinition, strategy resources.Strategy) (resources.Bundle, map[resources.Category]error) {
	return resources.LoadAll(ctx, strategy, loadTarget(ec, def))
}

// Capabilities reports remote loading.
func (a *RemoteAdapter) Capabilities() Capabilities {
	return Capabilities{Remote: true}
}
