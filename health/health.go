// Package health aggregates health checks of the entity core into one
// status for readiness probes and the admin API.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

var (
	ErrNilChecker     = fmt.Errorf("%w: health checker is nil", multitenant.ErrContractViolation)
	ErrDuplicateCheck = fmt.Errorf("%w: health check already registered", multitenant.ErrValidation)
)

// Status is the status of a check or of the aggregate.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Checker is one health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) (Result, error)
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) (Result, error)
}

func (c checkerFunc) Name() string { return c.name }

func (c checkerFunc) Check(ctx context.Context) (Result, error) { return c.fn(ctx) }

// NewChecker adapts fn to the Checker interface.
func NewChecker(name string, fn func(ctx context.Context) (Result, error)) Checker {
	return checkerFunc{name: name, fn: fn}
}

// Result is the outcome of one check.
type Result struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
}

// Summary counts check results per status.
type Summary struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Unknown  int `json:"unknown"`
}

// AggregatedStatus is the combined outcome of every check. The overall
// status is the worst check status; no checks means unknown.
type AggregatedStatus struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]Result `json:"checks"`
	Summary   Summary           `json:"summary"`
}

// Ready reports whether the aggregate allows serving traffic.
func (a AggregatedStatus) Ready() bool {
	return a.Status != StatusCritical
}

// Aggregator runs registered checks.
type Aggregator struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	last     *AggregatedStatus
	timeout  time.Duration
	logger   multitenant.Logger
}

// NewAggregator creates an Aggregator. A non-positive timeout selects
// DefaultTimeout.
func NewAggregator(timeout time.Duration, logger multitenant.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{
		checkers: make(map[string]Checker),
		timeout:  timeout,
		logger:   multitenant.LoggerOrNop(logger),
	}
}

// Register adds a check. Names are unique.
func (a *Aggregator) Register(checker Checker) error {
	if checker == nil {
		return ErrNilChecker
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.checkers[checker.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, checker.Name())
	}
	a.checkers[checker.Name()] = checker
	return nil
}

// Unregister removes a check and reports whether it existed.
func (a *Aggregator) Unregister(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.checkers[name]
	delete(a.checkers, name)
	return ok
}

// Names returns the registered check names in sorted order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.checkers))
	for name := range a.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll runs every check and stores the aggregate as the last status.
func (a *Aggregator) CheckAll(ctx context.Context) AggregatedStatus {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	a.mu.RUnlock()

	status := AggregatedStatus{
		Status:    StatusUnknown,
		Timestamp: time.Now(),
		Checks:    make(map[string]Result, len(checkers)),
	}
	for i, c := range checkers {
		r := a.run(ctx, c)
		status.Checks[r.Name] = r
		if i == 0 {
			status.Status = r.Status
		} else {
			status.Status = status.Status.Worse(r.Status)
		}
		status.Summary.add(r.Status)
	}

	a.mu.Lock()
	a.last = &status
	a.mu.Unlock()
	return status
}

// Last returns the status of the most recent CheckAll.
func (a *Aggregator) Last() (AggregatedStatus, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return AggregatedStatus{}, false
	}
	return *a.last, true
}

func (a *Aggregator) run(ctx context.Context, c Checker) (r Result) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("Health check panicked", "check", c.Name(), "panic", p)
			r = Result{Status: StatusCritical, Error: fmt.Sprint(p)}
		}
		r.Name = c.Name()
		r.Timestamp = start
		r.Duration = time.Since(start)
	}()

	r, err := c.Check(ctx)
	if err != nil {
		a.logger.Warn("Health check failed", "check", c.Name(), "error", err)
		return Result{Status: StatusCritical, Error: err.Error()}
	}
	if r.Status == "" {
		r.Status = StatusHealthy
	}
	return r
}

func (s *Summary) add(status Status) {
	s.Total++
	switch status {
	case StatusHealthy:
		s.Healthy++
	case StatusWarning:
		s.Warning++
	case StatusCritical:
		s.Critical++
	default:
		s.Unknown++
	}
}
