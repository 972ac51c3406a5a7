package monitoring

import (
	"context"
	"sync"
	"time"
)

type HealthChecker struct {
	checks []HealthCheck
	stats  []StatFunc
	mu     sync.RWMutex
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

// StatFunc contributes a named numeric stat to the health report, for
// example live connection counts per namespace.
type StatFunc func() (name string, value int)

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Stats     map[string]int    `json:"stats,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{Name: name, Check: check, Timeout: timeout})
}

func (h *HealthChecker) AddStat(fn StatFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats = append(h.stats, fn)
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
		Stats:     make(map[string]int),
	}

	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "degraded"
			status.Checks[check.Name] = err.Error()
		} else {
			status.Checks[check.Name] = "ok"
		}
	}

	for _, fn := range h.stats {
		name, value := fn()
		status.Stats[name] = value
	}

	return status
}
