package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/config"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/health"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/httpadmin"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/orchestrator"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/schedule"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/watch"
)

// DefaultAddr is used when neither the flag nor the configuration set an address.
const DefaultAddr = ":8080"

type serveOptions struct {
	addr            string
	packagesDir     string
	metrics         bool
	watch           bool
	shutdownTimeout time.Duration
}

// NewServeCommand creates the serve command
func NewServeCommand(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load every entity and serve entity and admin routes",
		Long: `Load the entity definitions, discover and load every entity under the
entities directory, and serve entity routes together with the admin API
under /admin until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, flags, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (overrides admin.addr)")
	cmd.Flags().StringVar(&opts.packagesDir, "packages", "packages", "Directory under the entities directory holding pkg: and npm: sources")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", true, "Serve Prometheus metrics on /metrics")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload entities when their files change (overrides watch)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	return cmd
}

// server bundles the running components of serve.
type server struct {
	manager   *orchestrator.Manager
	router    chi.Router
	health    *health.Aggregator
	scheduler *schedule.Scheduler
	watcher   *watch.Watcher
	logger    multitenant.Logger
}

// newServer wires the manager, routers, health checks and maintenance jobs
// from cfg.
// Entities are not loaded yet.
func newServer(cfg config.Config, opts *serveOptions, logger multitenant.Logger) (*server, error) {
	logger = multitenant.LoggerOrNop(logger)
	defs, err := loadDefinitions(cfg)
	if err != nil {
		return nil, err
	}
	validator, err := security.NewValidator(cfg.Security)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	routes := httpadmin.NewChiRouteRegistrar(logger)
	fsys := os.DirFS(cfg.EntitiesDir)
	managerOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithCacheConfig(cfg.Cache),
		orchestrator.WithHierarchicalConfig(cfg.Resources),
		orchestrator.WithValidator(validator),
		orchestrator.WithRouteRegistrar(routes),
	}
	if opts.metrics {
		managerOpts = append(managerOpts, orchestrator.WithMetrics(reg))
	}
	if opts.packagesDir != "" {
		managerOpts = append(managerOpts, orchestrator.WithPackageFetcher(orchestrator.DirPackageFetcher{FS: fsys, Root: opts.packagesDir}))
	}
	manager, err := orchestrator.New(defs, fsys, managerOpts...)
	if err != nil {
		return nil, err
	}

	router.Use(middleware.RequestID, middleware.Recoverer)
	router.Use(httpadmin.Middleware(manager, logger))
	router.Mount("/admin", httpadmin.NewRouter(manager, logger))

	checks := health.NewAggregator(health.DefaultTimeout, logger)
	if err := errors.Join(
		checks.Register(health.EntitiesCheck(manager)),
		checks.Register(health.CacheCheck(manager)),
	); err != nil {
		return nil, err
	}
	router.Get("/healthz", httpadmin.HealthHandler(checks))
	if opts.metrics {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	router.Handle("/*", routes)

	scheduler, err := schedule.New(manager, cfg.Schedule, logger)
	if err != nil {
		return nil, err
	}

	s := &server{manager: manager, router: router, health: checks, scheduler: scheduler, logger: logger}
	if cfg.Watch || opts.watch {
		s.watcher, err = watch.New(cfg.EntitiesDir, defs, manager, watch.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// start loads every entity and starts the background components.
func (s *server) start(ctx context.Context) (orchestrator.LoadSummary, error) {
	summary := s.manager.LoadAllEntities(ctx)
	s.logger.Info("Entities loaded", "loaded", len(summary.Loaded), "inactive", len(summary.Inactive), "failed", len(summary.Failed))

	if err := s.scheduler.Start(ctx); err != nil {
		return summary, err
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return summary, fmt.Errorf("start watcher: %w", err)
		}
	}
	return summary, nil
}

// stop stops the background components.
func (s *server) stop(ctx context.Context) error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	errs = append(errs, s.scheduler.Stop(ctx))
	return errors.Join(errs...)
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *globalFlags, opts *serveOptions) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	logger := flags.newLogger(cmd.ErrOrStderr())

	s, err := newServer(cfg, opts, logger)
	if err != nil {
		return err
	}
	if _, err := s.start(ctx); err != nil {
		return err
	}

	addr := opts.addr
	if addr == "" {
		addr = cfg.Admin.Addr
	}
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving entities", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = s.stop(context.Background())
			return fmt.Errorf("serve %s: %w", addr, err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), s.stop(shutdownCtx))
}
