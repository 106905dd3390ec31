package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the body of the readiness endpoint.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type HealthChecker struct {
	db        Pinger
	version   string
	gitCommit string
	buildDate string
	timeout   time.Duration
}

func NewHealthChecker(db Pinger, version, gitCommit, buildDate string) *HealthChecker {
	if version == "" {
		version = "dev"
	}
	if gitCommit == "" {
		gitCommit = "unknown"
	}
	if buildDate == "" {
		buildDate = "unknown"
	}
	return &HealthChecker{db: db, version: version, gitCommit: gitCommit, buildDate: buildDate, timeout: 2 * time.Second}
}

// Healthz reports liveness only.
func (h *HealthChecker) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports ready once the database answers a ping.
func (h *HealthChecker) Readyz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	default:
	}

	check := h.checkDatabase(r.Context())
	status, code := "healthy", http.StatusOK
	if check.Status == "fail" {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthCheck{
		Status:    status,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    map[string]CheckResult{"database": check},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not initialized"}
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		if ctx.Err() == context.DeadlineExceeded {
			message = "Database ping timed out"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency}
	}
	return CheckResult{Status: "pass", Message: "PostgreSQL connection successful", LatencyMs: latency}
}

type versionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Version serves build metadata set through ldflags.
func (h *HealthChecker) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version:   h.version,
		GitCommit: h.gitCommit,
		BuildDate: h.buildDate,
		GoVersion: runtime.Version(),
	})
}
