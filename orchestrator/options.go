package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/cache"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

// Option configures a Manager.
type Option func(*options) error

type options struct {
	logger       multitenant.Logger
	cacheConfig  cache.Config
	hierarchical resources.HierarchicalConfig
	validator    multitenant.IDValidator
	fetcher      resources.Fetcher
	registrar    resources.RouteRegistrar
	packages     PackageFetcher
	adapters     []Adapter
	registerer   prometheus.Registerer
	clock        func() time.Time
}

func defaultOptions() options {
	return options{
		cacheConfig:  cache.DefaultConfig(),
		hierarchical: resources.DefaultHierarchicalConfig(),
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger multitenant.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithCacheConfig configures the resource cache.
func WithCacheConfig(cfg cache.Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cacheConfig = cfg
		return nil
	}
}

// WithHierarchicalConfig configures layered resource loading.
func WithHierarchicalConfig(cfg resources.HierarchicalConfig) Option {
	return func(o *options) error {
		o.hierarchical = cfg
		return nil
	}
}

// WithValidator replaces the default id validator.
func WithValidator(v multitenant.IDValidator) Option {
	return func(o *options) error {
		o.validator = v
		return nil
	}
}

// WithFetcher replaces the fs.FS backed resource fetcher.
func WithFetcher(f resources.Fetcher) Option {
	return func(o *options) error {
		if f == nil {
			return multitenant.ErrNilFetcher
		}
		o.fetcher = f
		return nil
	}
}

// WithRouteRegistrar sets where entity routes are mounted.
func WithRouteRegistrar(r resources.RouteRegistrar) Option {
	return func(o *options) error {
		o.registrar = r
		return nil
	}
}

// WithPackageFetcher enables remote package sources.
func WithPackageFetcher(p PackageFetcher) Option {
	return func(o *options) error {
		o.packages = p
		return nil
	}
}

// WithAdapter appends an adapter after the built-in ones.
func WithAdapter(a Adapter) Option {
	return func(o *options) error {
		if a == nil {
			return multitenant.ErrNilAdapter
		}
		o.adapters = append(o.adapters, a)
		return nil
	}
}

// WithMetrics registers resource cache metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock sets the clock of the resource cache.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.clock = now
		return nil
	}
}
