package http

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/greeter-service/internal/degraded"
	"github.com/kjstillabower/greeter-service/internal/greeting"
	"github.com/kjstillabower/greeter-service/internal/idle"
	"github.com/kjstillabower/greeter-service/internal/lifecycle"
	"github.com/kjstillabower/greeter-service/internal/observability"
	"github.com/kjstillabower/greeter-service/internal/overload"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	Version                string
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int // greetings per minute, averaged over IdleWindow
	MinimumLifespan        time.Duration
	// StartTime anchors MinimumLifespan. Zero means lifecycle.StartedAt().
	StartTime time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	greeter          *greeting.Greeter
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, in which case health
// only reports shutting-down or healthy.
func NewHandler(greeter *greeting.Greeter, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		greeter:      greeter,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetGreeting handles GET /.
func (h *Handler) GetGreeting(w http.ResponseWriter, r *http.Request) {
	idle.RecordGreeting()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.greeter.Message())
	degraded.RecordSuccess()
	observability.GreetingsServedTotal.Inc()
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"greeting": "healthy"}
	if result.status == "degraded" {
		checks["greeting"] = "unhealthy"
	}
	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":        result.status,
		"service":       observability.ServiceName,
		"version":       version,
		"checks":        checks,
		"uptimeSeconds": int64(lifecycle.Uptime().Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > idle > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if overload.Exceeded(cfg.OverloadWindow, cfg.RateLimitRPS, cfg.OverloadThresholdPct) {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	start := cfg.StartTime
	if start.IsZero() {
		start = lifecycle.StartedAt()
	}
	if idle.Quiet(cfg.IdleWindow, cfg.IdleThresholdReqPerMin, cfg.MinimumLifespan, start) {
		return healthResult{"idle", http.StatusOK, "low_traffic"}
	}
	if degraded.Breached(cfg.DegradedWindow, cfg.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// NotFound answers unmatched paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
}

// MethodNotAllowed answers known paths requested with an unsupported method.
// Every registered route is GET-only.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method "+r.Method+" not allowed")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}} with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationIDFromContext(r.Context()),
		},
	})
}
