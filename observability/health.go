package observability

import "context"

// HealthStatus is a component's health. Statuses are ordered: up is
// better than degraded, which is better than down.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUp:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns the more severe of s and other.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Health is one component's report.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthChecker is implemented by anything that can report on itself.
// *supervisor.Supervisor is the main one.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) Health

// CheckHealth calls f(ctx).
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

// ServiceHealth is the process-wide report: the worst component status
// plus every component.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// CheckAll runs every checker in order and aggregates the results. With no
// checkers the service is up.
func CheckAll(ctx context.Context, service, version string, checkers ...HealthChecker) ServiceHealth {
	sh := ServiceHealth{Service: service, Version: version, Status: HealthStatusUp}
	for _, hc := range checkers {
		h := hc.CheckHealth(ctx)
		sh.Components = append(sh.Components, h)
		sh.Status = sh.Status.Worse(h.Status)
	}
	return sh
}
