// Package config loads the process configuration of the entity core from
// yaml, json or toml files and environment variables.
//
// Example YAML configuration:
//
//	definitionsFile: config/entities.yaml
//	entitiesDir: entities
//	cache:
//	  ttl: 5m
//	  maxSize: 100
//	  evictionPolicy: lru
//	security:
//	  maxIdLength: 64
//	resources:
//	  enabled: true
//	  globalPath: global
//	schedule:
//	  statsSpec: "@every 1m"
//	admin:
//	  addr: ":8081"
//
// Environment variables override files, per section:
// MULTITENANT_CACHE_TTL, MULTITENANT_SECURITY_MAX_ID_LENGTH,
// MULTITENANT_RESOURCES_GLOBAL_PATH, MULTITENANT_DEFINITIONS_FILE and so on.
package config

import (
	"errors"
	"fmt"

	"github.com/golobby/config/v3"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/cache"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/feeders"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MULTITENANT"

// ScheduleConfig configures the periodic jobs. Empty specs disable a job.
type ScheduleConfig struct {
	StatsSpec string `json:"statsSpec" yaml:"statsSpec" toml:"statsSpec" env:"STATS_SPEC" default:"@every 1m"`
	PruneSpec string `json:"pruneSpec" yaml:"pruneSpec" toml:"pruneSpec" env:"PRUNE_SPEC" default:"@every 5m"`
}

// AdminConfig configures the admin HTTP surface. An empty Addr disables it.
type AdminConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
}

// Config is the process configuration.
type Config struct {
	DefinitionsFile string `json:"definitionsFile" yaml:"definitionsFile" toml:"definitionsFile" env:"DEFINITIONS_FILE" default:"config/entities.yaml"`
	EntitiesDir     string `json:"entitiesDir" yaml:"entitiesDir" toml:"entitiesDir" env:"ENTITIES_DIR" default:"entities"`
	Watch           bool   `json:"watch" yaml:"watch" toml:"watch" env:"WATCH"`

	Cache     cache.Config                 `json:"cache" yaml:"cache" toml:"cache"`
	Security  security.Config              `json:"security" yaml:"security" toml:"security"`
	Resources resources.HierarchicalConfig `json:"resources" yaml:"resources" toml:"resources"`
	Schedule  ScheduleConfig               `json:"schedule" yaml:"schedule" toml:"schedule"`
	Admin     AdminConfig                  `json:"admin" yaml:"admin" toml:"admin"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DefinitionsFile: "config/entities.yaml",
		EntitiesDir:     "entities",
		Cache:           cache.DefaultConfig(),
		Security:        security.DefaultConfig(),
		Resources:       resources.DefaultHierarchicalConfig(),
		Schedule:        ScheduleConfig{StatsSpec: "@every 1m", PruneSpec: "@every 5m"},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if c.Security.MaxIDLength < 1 {
		errs = append(errs, fmt.Errorf("security: %w: maxIdLength must be at least 1", multitenant.ErrValidation))
	}
	if c.EntitiesDir == "" {
		errs = append(errs, fmt.Errorf("%w: entitiesDir is empty", multitenant.ErrValidation))
	}
	return errors.Join(errs...)
}

// Option adjusts Load.
type Option func(*loadOptions)

type loadOptions struct {
	lookup func(string) (string, bool)
}

// WithLookup replaces os.LookupEnv for environment overrides.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) {
		o.lookup = lookup
	}
}

// Load starts from Default, feeds each file in order, applies environment
// overrides and validates the result.
func Load(paths []string, opts ...Option) (Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if len(paths) > 0 {
		c := config.New()
		for _, path := range paths {
			f, err := feeders.ForFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %v", multitenant.ErrConfiguration, err)
			}
			c.AddFeeder(f)
		}
		c.AddStruct(&cfg)
		if err := c.Feed(); err != nil {
			return Config{}, fmt.Errorf("%w: %v", multitenant.ErrConfiguration, err)
		}
	}

	top := rootEnv{DefinitionsFile: cfg.DefinitionsFile, EntitiesDir: cfg.EntitiesDir, Watch: cfg.Watch}
	sections := []struct {
		prefix string
		target any
	}{
		{EnvPrefix, &top},
		{EnvPrefix + "_CACHE", &cfg.Cache},
		{EnvPrefix + "_SECURITY", &cfg.Security},
		{EnvPrefix + "_RESOURCES", &cfg.Resources},
		{EnvPrefix + "_SCHEDULE", &cfg.Schedule},
		{EnvPrefix + "_ADMIN", &cfg.Admin},
	}
	for _, s := range sections {
		f := feeders.AffixedEnvFeeder{Prefix: s.prefix, Lookup: o.lookup}
		if err := f.Feed(s.target); err != nil {
			return Config{}, fmt.Errorf("%w: %v", multitenant.ErrConfiguration, err)
		}
	}

	cfg.DefinitionsFile, cfg.EntitiesDir, cfg.Watch = top.DefinitionsFile, top.EntitiesDir, top.Watch

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// rootEnv holds the top-level fields so the root prefix does not reach into
// the sections.
type rootEnv struct {
	DefinitionsFile string `env:"DEFINITIONS_FILE"`
	EntitiesDir     string `env:"ENTITIES_DIR"`
	Watch           bool   `env:"WATCH"`
}
