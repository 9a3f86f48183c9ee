// Package schedule runs periodic maintenance of the entity core: a stats
// report and the pruning of expired resource cache entries.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/config"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/orchestrator"
)

// Job names.
const (
	JobStats = "stats"
	JobPrune = "prune"
)

// Source is what the scheduled jobs act on.
type Source interface {
	GetStats() orchestrator.Stats
	PruneCache() int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReporter receives each stats snapshot in addition to the log line.
func WithReporter(fn func(orchestrator.Stats)) Option {
	return func(s *Scheduler) {
		s.reporter = fn
	}
}

// Scheduler runs the jobs on cron schedules. An empty spec disables a job.
type Scheduler struct {
	source   Source
	logger   multitenant.Logger
	reporter func(orchestrator.Stats)

	cron    *cron.Cron
	entries map[string]cron.EntryID

	mu      sync.Mutex
	started bool
}

// New parses the schedules in cfg and registers the jobs.
func New(source Source, cfg config.ScheduleConfig, logger multitenant.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		source:  source,
		logger:  multitenant.LoggerOrNop(logger),
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{JobStats, cfg.StatsSpec, func() { s.RunStats() }},
		{JobPrune, cfg.PruneSpec, func() { s.RunPrune() }},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		schedule, err := cron.ParseStandard(job.spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s schedule %q: %v", multitenant.ErrValidation, job.name, job.spec, err)
		}
		s.entries[job.name] = s.cron.Schedule(schedule, cron.FuncJob(job.run))
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.logger.Info("Starting maintenance scheduler", "jobs", len(s.entries))
	s.cron.Start()
	s.started = true
	return nil
}

// Stop stops the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next run time of each enabled job.
func (s *Scheduler) Next() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Jobs returns the names of the enabled jobs.
func (s *Scheduler) Jobs() []string {
	out := make([]string, 0, len(s.entries))
	for _, name := range []string{JobStats, JobPrune} {
		if _, ok := s.entries[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// RunStats logs a stats snapshot and hands it to the reporter.
func (s *Scheduler) RunStats() orchestrator.Stats {
	stats := s.source.GetStats()
	s.logger.Info("Entity core stats",
		"entities", stats.Entities.Total,
		"active", stats.Entities.Active,
		"inactive", stats.Entities.Inactive,
		"loaded", stats.Entities.History.Loaded,
		"failed", stats.Entities.History.Failed,
		"reloaded", stats.Entities.History.Reloaded,
		"cacheSize", stats.Cache.Size,
		"cacheHitRate", stats.Cache.HitRate,
	)
	if s.reporter != nil {
		s.reporter(stats)
	}
	return stats
}

// RunPrune removes expired resource cache entries.
func (s *Scheduler) RunPrune() int {
	n := s.source.PruneCache()
	if n > 0 {
		s.logger.Debug("Pruned expired resource cache entries", "entries", n)
	}
	return n
}
