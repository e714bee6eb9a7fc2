package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/favorites/internal/metrics"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthChecker answers the liveness and readiness probes.
type HealthChecker struct {
	checks  map[string]Pinger
	version string
	timeout time.Duration
}

func NewHealthChecker(version string, checks map[string]Pinger) *HealthChecker {
	return &HealthChecker{checks: checks, version: version, timeout: 2 * time.Second}
}

// Healthz reports that the process is serving.
func (h *HealthChecker) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthCheck{
		Status:    "ok",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz pings every dependency and answers 503 when any of them fails.
func (h *HealthChecker) Readyz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		writeJSON(w, http.StatusServiceUnavailable, HealthCheck{Status: "shutting_down", Version: h.version})
		return
	default:
	}

	resp := HealthCheck{
		Status:    "ready",
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(h.checks)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	for name, pinger := range h.checks {
		result := h.check(r.Context(), pinger)
		resp.Checks[name] = result

		gauge := 1.0
		if result.Status != "pass" {
			gauge = 0
			status = http.StatusServiceUnavailable
			resp.Status = "unavailable"
		}
		metrics.HealthCheckStatus.WithLabelValues(name).Set(gauge)
	}
	writeJSON(w, status, resp)
}

func (h *HealthChecker) check(ctx context.Context, pinger Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := pinger.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: "fail", Message: err.Error(), LatencyMs: latency}
	}
	return CheckResult{Status: "pass", LatencyMs: latency}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
