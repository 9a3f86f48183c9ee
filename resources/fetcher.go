package resources

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/feeders"
)

// Fetcher performs the actual resource I/O for one layer directory.
// Paths are slash-separated and relative to the fetcher's root.
type Fetcher interface {
	Exists(ctx context.Context, dir string) bool
	LoadSchemas(ctx context.Context, dir string) ([]string, error)
	LoadServices(ctx context.Context, dir string) (map[string]any, error)
	LoadPlugins(ctx context.Context, dir string) ([]string, error)
	RegisterRoutes(ctx context.Context, dir, prefix string, target Target) error
}

// Route is a declarative route read from an entity's routes directory.
type Route struct {
	Method string `json:"method" yaml:"method" toml:"method"`
	Path   string `json:"path" yaml:"path" toml:"path"`
	Status int    `json:"status,omitempty" yaml:"status,omitempty" toml:"status,omitempty"`
	Body   any    `json:"body,omitempty" yaml:"body,omitempty" toml:"body,omitempty"`
}

// RouteMount is a set of routes to expose under Prefix for one entity.
type RouteMount struct {
	Prefix string
	Target Target
	Routes []Route
}

// RouteRegistrar mounts entity routes on a transport. UnregisterRoutes
// stops serving a prefix registered earlier; unknown prefixes are not an
// error.
type RouteRegistrar interface {
	RegisterRoutes(ctx context.Context, mount RouteMount) error
	UnregisterRoutes(ctx context.Context, prefix string) error
}

// Service is the handle stored for a loaded service. Config holds the
// decoded service file, if the service is a file.
type Service struct {
	Name   string         `json:"name"`
	Path   string         `json:"path"`
	Config map[string]any `json:"config,omitempty"`
}

// ErrNoRegistrar is returned when routes are found but no RouteRegistrar
// was configured.
var ErrNoRegistrar = fmt.Errorf("%w: route registrar is nil", multitenant.ErrContractViolation)

// FSFetcher reads resources from an fs.FS:
//   - schemas: one yaml/json/toml file per schema; the id is the document's
//     "$id" or "id" field, or the file name without extension
//   - services: one file or directory per service
//   - plugins: one file or directory per plugin, named without extension
//   - routes: yaml/json/toml files with a top-level "routes" list
//
// Hidden entries are ignored.
type FSFetcher struct {
	fsys      fs.FS
	registrar RouteRegistrar
}

var _ Fetcher = (*FSFetcher)(nil)

// NewFSFetcher creates a fetcher over fsys. registrar may be nil when no
// entity declares routes.
func NewFSFetcher(fsys fs.FS, registrar RouteRegistrar) *FSFetcher {
	return &FSFetcher{fsys: fsys, registrar: registrar}
}

// FSPath converts a slash path to the form accepted by io/fs.
func FSPath(p string) string {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "."
	}
	return clean
}

// Exists reports whether dir exists and is a directory.
func (f *FSFetcher) Exists(_ context.Context, dir string) bool {
	info, err := fs.Stat(f.fsys, FSPath(dir))
	return err == nil && info.IsDir()
}

func (f *FSFetcher) entries(dir string) ([]fs.DirEntry, error) {
	all, err := fs.ReadDir(f.fsys, FSPath(dir))
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, e := range all {
		if !strings.HasPrefix(e.Name(), ".") {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func (f *FSFetcher) decode(file string, target any) error {
	data, err := fs.ReadFile(f.fsys, FSPath(file))
	if err != nil {
		return err
	}
	return feeders.Decode(file, data, target)
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// LoadSchemas returns the schema ids found in dir.
func (f *FSFetcher) LoadSchemas(ctx context.Context, dir string) ([]string, error) {
	entries, err := f.entries(dir)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		if _, ok := feeders.FormatOf(e.Name()); !ok {
			continue
		}
		var doc map[string]any
		if err := f.decode(path.Join(dir, e.Name()), &doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
		ids = append(ids, schemaID(doc, trimExt(e.Name())))
	}
	return ids, nil
}

func schemaID(doc map[string]any, fallback string) string {
	for _, key := range []string{"$id", "id"} {
		if id, ok := doc[key].(string); ok && id != "" {
			return id
		}
	}
	return fallback
}

// LoadServices returns a name → Service map for dir.
func (f *FSFetcher) LoadServices(ctx context.Context, dir string) (map[string]any, error) {
	entries, err := f.entries(dir)
	if err != nil {
		return nil, err
	}

	services := make(map[string]any, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			services[e.Name()] = Service{Name: e.Name(), Path: p}
			continue
		}

		name := trimExt(e.Name())
		svc := Service{Name: name, Path: p}
		if _, ok := feeders.FormatOf(e.Name()); ok {
			if err := f.decode(p, &svc.Config); err != nil {
				return nil, fmt.Errorf("service %s: %w", name, err)
			}
		}
		services[name] = svc
	}
	return services, nil
}

// LoadPlugins returns the plugin names found in dir.
func (f *FSFetcher) LoadPlugins(ctx context.Context, dir string) ([]string, error) {
	entries, err := f.entries(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		} else {
			names = append(names, trimExt(e.Name()))
		}
	}
	return names, nil
}

// RegisterRoutes reads every route file in dir and mounts the routes under prefix.
func (f *FSFetcher) RegisterRoutes(ctx context.Context, dir, prefix string, target Target) error {
	entries, err := f.entries(dir)
	if err != nil {
		return err
	}

	mount := RouteMount{Prefix: prefix, Target: target}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := feeders.FormatOf(e.Name()); !ok {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(f.fsys, FSPath(p))
		if err != nil {
			return err
		}
		var routes []Route
		if err := feeders.DecodeKey(p, data, "routes", &routes); err != nil {
			return fmt.Errorf("routes %s: %w", e.Name(), err)
		}
		mount.Routes = append(mount.Routes, routes...)
	}

	if f.registrar == nil {
		return ErrNoRegistrar
	}
	return f.registrar.RegisterRoutes(ctx, mount)
}
