package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/emonty/burrow/internal/logging"
	"github.com/emonty/burrow/internal/queue"
	"github.com/emonty/burrow/internal/version"
)

type componentStatus struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

type readinessResponse struct {
	Ready      bool                       `json:"ready"`
	ObservedAt time.Time                  `json:"observed_at"`
	Checks     map[string]componentStatus `json:"checks"`
}

// HealthHandler serves the liveness and readiness probes. Readiness checks
// engine reachability by listing accounts with a limit of zero — cheap
// enough to run on every probe, but enough to surface a broken connection
// pool or corrupt database file.
type HealthHandler struct {
	engine            queue.Engine
	healthCheckMetric func(component, status string)
}

func NewHealthHandler(engine queue.Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

func (h *HealthHandler) SetMetrics(healthCheckMetric func(component, status string)) {
	h.healthCheckMetric = healthCheckMetric
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"service":    "burrow",
		"version":    versionInfo.Version,
		"build_time": versionInfo.BuildTime,
		"git_commit": versionInfo.GitCommit,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	logger := logging.ContextLogger(r.Context(), nil)

	engineStatus, err := h.checkEngine(ctx)
	checks := map[string]componentStatus{"engine": engineStatus}
	ready := engineStatus.Status == "healthy"

	if err != nil {
		logger.Error("engine health check failed", slog.String("error", err.Error()))
		captureHealthCheckFailure("engine", engineStatus, err)
	}

	response := readinessResponse{
		Ready:      ready,
		ObservedAt: time.Now().UTC(),
		Checks:     checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// Clean handles POST /debug/clean: an additive operator-triggered maintenance
// route that runs the same queue.Engine.Clean sweep the reaper runs on its
// own timer, idempotently, outside the /v1.0 wire surface.
func (h *HealthHandler) Clean(w http.ResponseWriter, r *http.Request) {
	targets, stats, err := h.engine.Clean(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		Notified int `json:"notified"`
		Expired  int `json:"expired"`
		Unhidden int `json:"unhidden"`
	}{
		Notified: len(targets),
		Expired:  stats.Expired,
		Unhidden: stats.Unhidden,
	})
}

func (h *HealthHandler) checkEngine(ctx context.Context) (componentStatus, error) {
	result := componentStatus{Status: "healthy"}
	start := time.Now()
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	if h.engine == nil {
		result.Status = "unhealthy"
		result.Error = "engine not configured"
		h.recordMetric("engine", result.Status)
		return result, nil
	}

	_, err := h.engine.GetAccounts(ctx, queue.Filter{Limit: 0, HasLimit: true})
	if err != nil && queue.KindOf(err) == queue.NotFound {
		// A limit of 0 always yields NotFound; that still proves the
		// engine answered, so it is not a failure to log or report.
		err = nil
	}
	if err != nil {
		result.Status = "unhealthy"
		result.Error = err.Error()
	}

	h.recordMetric("engine", result.Status)
	return result, err
}

func (h *HealthHandler) recordMetric(component, status string) {
	if h.healthCheckMetric != nil {
		h.healthCheckMetric(component, status)
	}
}

func captureHealthCheckFailure(component string, status componentStatus, err error) {
	if err == nil {
		return
	}
	if hub := sentry.CurrentHub(); hub == nil || hub.Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(sentry.LevelWarning)
		scope.SetContext("healthcheck", map[string]any{
			"status":      status.Status,
			"duration_ms": status.DurationMs,
			"error":       status.Error,
		})
		sentry.CaptureException(err)
	})
}
