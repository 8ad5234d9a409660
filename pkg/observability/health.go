package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker verifies one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// FuncHealthCheck adapts a function to HealthChecker.
//
// Example:
//
//	observability.FuncHealthCheck{CheckName: "store", CheckFunc: store.Health}
type FuncHealthCheck struct {
	CheckName string
	CheckFunc func(ctx context.Context) error
}

func (c FuncHealthCheck) Name() string                    { return c.CheckName }
func (c FuncHealthCheck) Check(ctx context.Context) error { return c.CheckFunc(ctx) }

// HealthStatus is the overall verdict.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthReport aggregates all checks.
type HealthReport struct {
	Status    HealthStatus                 `json:"status"`
	Checks    map[string]HealthCheckResult `json:"checks"`
	Uptime    time.Duration                `json:"uptime"`
	Timestamp time.Time                    `json:"timestamp"`
}

// RunHealthChecks runs every check concurrently, each bounded by timeout.
// Any failure marks the report unhealthy.
func RunHealthChecks(ctx context.Context, checks []HealthChecker, timeout time.Duration) HealthReport {
	report := HealthReport{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]HealthCheckResult, len(checks)),
		Uptime:    time.Since(startTime),
		Timestamp: time.Now(),
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, c := range checks {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			result := HealthCheckResult{Name: c.Name(), Status: "ok", Latency: time.Since(start)}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}

			mu.Lock()
			report.Checks[result.Name] = result
			if err != nil {
				report.Status = HealthStatusUnhealthy
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return report
}

// HealthHandler serves the JSON report, with 503 when unhealthy.
func HealthHandler(checks []HealthChecker, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := RunHealthChecks(r.Context(), checks, timeout)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
