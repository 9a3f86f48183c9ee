package resources

import (
	"context"
	"errors"
	"sync"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

var errLayer = errors.New("layer unavailable")

// fakeFetcher serves canned layers keyed by directory and counts calls.
type fakeFetcher struct {
	mu       sync.Mutex
	lists    map[string][]string
	services map[string]map[string]any
	routes   map[string]bool
	failing  map[string]bool
	calls    int
	mounted  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		lists:    map[string][]string{},
		services: map[string]map[string]any{},
		routes:   map[string]bool{},
		failing:  map[string]bool{},
	}
}

func (f *fakeFetcher) Exists(_ context.Context, dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, l := f.lists[dir]
	_, s := f.services[dir]
	return l || s || f.routes[dir] || f.failing[dir]
}

func (f *fakeFetcher) loadList(dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[dir] {
		return nil, errLayer
	}
	return append([]string(nil), f.lists[dir]...), nil
}

func (f *fakeFetcher) LoadSchemas(_ context.Context, dir string) ([]string, error) {
	return f.loadList(dir)
}

func (f *fakeFetcher) LoadPlugins(_ context.Context, dir string) ([]string, error) {
	return f.loadList(dir)
}

func (f *fakeFetcher) LoadServices(_ context.Context, dir string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[dir] {
		return nil, errLayer
	}
	out := make(map[string]any, len(f.services[dir]))
	for k, v := range f.services[dir] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeFetcher) RegisterRoutes(_ context.Context, dir, prefix string, _ Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[dir] {
		return errLayer
	}
	f.mounted = append(f.mounted, prefix)
	return nil
}

type staticDefs map[string]multitenant.EntityDefinition

func (s staticDefs) Definition(entityType string) (multitenant.EntityDefinition, bool) {
	d, ok := s[entityType]
	return d, ok
}
