package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates the registry is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentRegistry = "registry"
	ComponentDatabase = "database"
	ComponentAnswers  = "answers"
)

// checkTimeout bounds each component check.
const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	registry Checker
	db       DBPinger
	answers  Checker
}

// New creates a Service. db and answers can be nil.
func New(registry Checker, db DBPinger, answers Checker) *Service {
	return &Service{registry: registry, db: db, answers: answers}
}

// Check queries all components concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)
	check := func(name string, fn func(context.Context) error) func() error {
		return func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			result := CheckOK
			if err := fn(cctx); err != nil {
				result = CheckError
			}
			mu.Lock()
			checks[name] = result
			mu.Unlock()
			return nil // a failed check must not cancel the others
		}
	}

	var g errgroup.Group
	g.Go(check(ComponentRegistry, s.registry.HealthCheck))
	if s.db != nil {
		g.Go(check(ComponentDatabase, s.db.Ping))
	}
	if s.answers != nil {
		g.Go(check(ComponentAnswers, s.answers.HealthCheck))
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentRegistry] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
