package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/feeders"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

// ConfigFileName is the base name of an entity's configuration file. The
// first of config.yaml, config.yml, config.json and config.toml is read.
const ConfigFileName = "config"

// LocalAdapter reads entities from directories of an fs.FS. Sources are
// slash paths relative to the root of the file system.
type LocalAdapter struct {
	fsys fs.FS
}

var (
	_ Adapter    = (*LocalAdapter)(nil)
	_ Discoverer = (*LocalAdapter)(nil)
)

// NewLocalAdapter creates an adapter over fsys.
func NewLocalAdapter(fsys fs.FS) *LocalAdapter {
	return &LocalAdapter{fsys: fsys}
}

// Name returns "local".
func (a *LocalAdapter) Name() string {
	return "local"
}

// CanHandle reports whether source is an existing directory.
func (a *LocalAdapter) CanHandle(source string) bool {
	if source == "" || IsRemote(source) {
		return false
	}
	info, err := fs.Stat(a.fsys, resources.FSPath(source))
	return err == nil && info.IsDir()
}

// LoadConfig decodes the directory's configuration file over defaults. A
// directory without a configuration file yields defaults.
func (a *LocalAdapter) LoadConfig(ctx context.Context, source string, defaults multitenant.EntityConfig) (multitenant.EntityConfig, error) {
	cfg, err := readEntityConfig(ctx, a.fsys, source, defaults)
	if err != nil {
		return multitenant.EntityConfig{}, err
	}
	cfg.Source = source
	cfg.Path = source
	return cfg, nil
}

// LoadResources loads the entity's resources from its directory.
func (a *LocalAdapter) LoadResources(ctx context.Context, ec *multitenant.EntityContext, def multitenant.EntityDefinition, strategy resources.Strategy) (resources.Bundle, map[resources.Category]error) {
	return resources.LoadAll(ctx, strategy, loadTarget(ec, def))
}

// Capabilities reports local loading with discovery.
func (a *LocalAdapter) Capabilities() Capabilities {
	return Capabilities{Local: true, Discovery: true}
}

// Discover lists the visible subdirectories of basePath in name order. A
// missing basePath yields no ids.
func (a *LocalAdapter) Discover(ctx context.Context, basePath string) ([]string, error) {
	entries, err := fs.ReadDir(a.fsys, resources.FSPath(basePath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", basePath, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func readEntityConfig(ctx context.Context, fsys fs.FS, dir string, defaults multitenant.EntityConfig) (multitenant.EntityConfig, error) {
	if err := ctx.Err(); err != nil {
		return multitenant.EntityConfig{}, err
	}

	cfg := defaults
	if defaults.Settings != nil {
		cfg.Settings = make(map[string]any, len(defaults.Settings))
		for k, v := range defaults.Settings {
			cfg.Settings[k] = v
		}
	}

	for _, ext := range feeders.ConfigExtensions {
		name := path.Join(dir, ConfigFileName+ext)
		data, err := fs.ReadFile(fsys, resources.FSPath(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return multitenant.EntityConfig{}, fmt.Errorf("read %s: %w", name, err)
		}
		if err := feeders.Decode(name, data, &cfg); err != nil {
			return multitenant.EntityConfig{}, fmt.Errorf("%w: %s: %w", multitenant.ErrValidation, name, err)
		}
		return cfg, nil
	}
	return cfg, nil
}
