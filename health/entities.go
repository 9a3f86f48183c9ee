package health

import (
	"context"
	"fmt"

	"github.com/carlosmarte/fastify-multi-tenant-sub001/lifecycle"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/orchestrator"
)

// StatsSource provides entity manager statistics.
type StatsSource interface {
	GetStats() orchestrator.Stats
}

// EntitiesCheck reports critical without definitions and warning while any
// entity sits in the error state.
func EntitiesCheck(source StatsSource) Checker {
	return NewChecker("entities", func(ctx context.Context) (Result, error) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		stats := source.GetStats()
		r := Result{
			Status: StatusHealthy,
			Details: map[string]any{
				"definitions": stats.Definitions,
				"registered":  stats.Entities.Total,
				"active":      stats.Entities.Active,
				"failedLoads": stats.Entities.History.Failed,
			},
			Message: fmt.Sprintf("%d entities registered", stats.Entities.Total),
		}
		switch errored := stats.States[lifecycle.StateError.String()]; {
		case stats.Definitions == 0:
			r.Status = StatusCritical
			r.Message = "no entity definitions"
		case errored > 0:
			r.Status = StatusWarning
			r.Message = fmt.Sprintf("%d entities in error state", errored)
			r.Details["errored"] = errored
		}
		return r, nil
	})
}

// CacheCheck reports warning while the resource cache is disabled or full.
func CacheCheck(source StatsSource) Checker {
	return NewChecker("cache", func(ctx context.Context) (Result, error) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cs := source.GetStats().Cache
		r := Result{
			Status: StatusHealthy,
			Details: map[string]any{
				"size":      cs.Size,
				"maxSize":   cs.MaxSize,
				"hitRate":   cs.HitRate,
				"evictions": cs.Evictions,
			},
		}
		switch {
		case !cs.Enabled:
			r.Status = StatusWarning
			r.Message = "resource cache disabled"
		case cs.MaxSize > 0 && cs.Size >= cs.MaxSize:
			r.Status = StatusWarning
			r.Message = "resource cache full"
		default:
			r.Message = fmt.Sprintf("%d of %d entries", cs.Size, cs.MaxSize)
		}
		return r, nil
	})
}
