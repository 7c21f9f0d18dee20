package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/greeter-service/internal/degraded"
	"github.com/kjstillabower/greeter-service/internal/greeting"
	"github.com/kjstillabower/greeter-service/internal/idle"
	"github.com/kjstillabower/greeter-service/internal/lifecycle"
	"github.com/kjstillabower/greeter-service/internal/overload"
	"github.com/kjstillabower/greeter-service/internal/traffic"
)

// resetState clears the process-wide trackers shared by handlers and middleware.
func resetState(t *testing.T) {
	t.Helper()
	traffic.Reset()
	idle.Reset()
	lifecycle.SetShuttingDown(false)
	t.Cleanup(func() {
		traffic.Reset()
		idle.Reset()
		lifecycle.SetShuttingDown(false)
	})
}

func newTestHandler(healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return NewHandler(greeting.New(""), healthConfig, logger)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

// TestHandler_GetGreeting verifies GET / returns 200 text/plain with the greeting as the whole body.
func TestHandler_GetGreeting(t *testing.T) {
	resetState(t)
	handler := newTestHandler(nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetGreeting(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GetGreeting() status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain; charset=utf-8", ct)
	}
	if got := w.Body.String(); got != "Hello from rahul" {
		t.Errorf("body = %q, want %q", got, "Hello from rahul")
	}
}

func TestHandler_GetGreeting_Configured(t *testing.T) {
	resetState(t)
	handler := NewHandler(greeting.New("Hello from CI/CD App!"), nil, nil)

	w := httptest.NewRecorder()
	handler.GetGreeting(w, httptest.NewRequest("GET", "/", nil))

	if got := w.Body.String(); got != "Hello from CI/CD App!" {
		t.Errorf("body = %q, want configured greeting", got)
	}
}

// TestHandler_GetGreeting_Idempotent verifies repeated calls return identical responses.
func TestHandler_GetGreeting_Idempotent(t *testing.T) {
	resetState(t)
	handler := newTestHandler(nil, zap.NewNop())

	var first string
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.GetGreeting(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("call %d status = %d, want 200", i, w.Code)
		}
		if i == 0 {
			first = w.Body.String()
			continue
		}
		if w.Body.String() != first {
			t.Errorf("call %d body = %q, want %q", i, w.Body.String(), first)
		}
	}
}

// TestHandler_GetGreeting_RecordsTraffic verifies each greeting counts toward idle and error-rate windows.
func TestHandler_GetGreeting_RecordsTraffic(t *testing.T) {
	resetState(t)
	handler := newTestHandler(nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		handler.GetGreeting(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}

	if n := idle.GreetingCount(time.Minute); n != 3 {
		t.Errorf("idle.GreetingCount() = %d, want 3", n)
	}
	if errs, total := degraded.ErrorRate(time.Minute); errs != 0 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 3)", errs, total)
	}
}

func TestHandler_GetHealth_Healthy(t *testing.T) {
	resetState(t)
	handler := newTestHandler(&HealthConfig{Version: "1.0.0"}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("GetHealth() status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["service"] != "greeter-service" {
		t.Errorf("service = %v, want greeter-service", body["service"])
	}
	if body["version"] != "1.0.0" {
		t.Errorf("version = %v, want 1.0.0", body["version"])
	}
	checks, ok := body["checks"].(map[string]interface{})
	if !ok || checks["greeting"] != "healthy" {
		t.Errorf("checks = %v, want greeting healthy", body["checks"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestHandler_GetHealth_NilConfig(t *testing.T) {
	resetState(t)
	handler := newTestHandler(nil, nil)

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	body := decodeBody(t, w)
	if w.Code != http.StatusOK || body["status"] != "healthy" || body["version"] != "dev" {
		t.Errorf("GetHealth() = %d %v, want 200 healthy dev", w.Code, body)
	}
}

// TestHandler_GetHealth_Statuses verifies each status and the priority between them.
func TestHandler_GetHealth_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *HealthConfig
		arrange    func()
		wantStatus string
		wantCode   int
	}{
		{
			name:       "shutting down wins over everything",
			cfg:        &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 1},
			arrange:    func() { degraded.RecordError(); lifecycle.SetShuttingDown(true) },
			wantStatus: "shutting-down",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "overloaded",
			cfg:  &HealthConfig{OverloadWindow: time.Second, RateLimitRPS: 1, OverloadThresholdPct: 50},
			arrange: func() {
				overload.RecordDenial()
				overload.RecordDenial()
			},
			wantStatus: "overloaded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "overload ignored without limiter",
			cfg:  &HealthConfig{OverloadWindow: time.Second, OverloadThresholdPct: 50},
			arrange: func() {
				degraded.RecordSuccess()
				degraded.RecordSuccess()
			},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "idle after minimum lifespan",
			cfg: &HealthConfig{
				IdleWindow:             time.Minute,
				IdleThresholdReqPerMin: 5,
				MinimumLifespan:        time.Minute,
				StartTime:              time.Now().Add(-time.Hour),
			},
			arrange:    func() { idle.RecordGreeting() },
			wantStatus: "idle",
			wantCode:   http.StatusOK,
		},
		{
			name: "idle threshold is per minute over the window",
			cfg: &HealthConfig{
				IdleWindow:             5 * time.Minute,
				IdleThresholdReqPerMin: 1,
				MinimumLifespan:        time.Minute,
				StartTime:              time.Now().Add(-time.Hour),
			},
			arrange: func() {
				for i := 0; i < 3; i++ {
					idle.RecordGreeting()
				}
			},
			wantStatus: "idle",
			wantCode:   http.StatusOK,
		},
		{
			name: "not idle before minimum lifespan",
			cfg: &HealthConfig{
				IdleWindow:             time.Minute,
				IdleThresholdReqPerMin: 5,
				MinimumLifespan:        time.Hour,
				StartTime:              time.Now(),
			},
			arrange:    func() {},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "degraded on error rate breach",
			cfg:  &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			arrange: func() {
				degraded.RecordSuccess()
				degraded.RecordError()
			},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "error rate below threshold",
			cfg:  &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			arrange: func() {
				degraded.RecordSuccess()
				degraded.RecordSuccess()
				degraded.RecordError()
			},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetState(t)
			tt.arrange()
			handler := newTestHandler(tt.cfg, zap.NewNop())

			w := httptest.NewRecorder()
			handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("GetHealth() status = %d, want %d", w.Code, tt.wantCode)
			}
			if body := decodeBody(t, w); body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}

// TestHandler_GetHealth_LogsTransition verifies transitions are logged only when status changes.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	resetState(t)
	core, logs := observer.New(zap.DebugLevel)
	handler := newTestHandler(&HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, zap.New(core))

	degraded.RecordSuccess()
	degraded.RecordSuccess()
	req := httptest.NewRequest("GET", "/health", nil)
	handler.GetHealth(httptest.NewRecorder(), req)
	handler.GetHealth(httptest.NewRecorder(), req)
	if logs.Len() != 0 {
		t.Fatalf("steady healthy status should not log; got %d logs", logs.Len())
	}

	degraded.RecordError()
	degraded.RecordError()
	w := httptest.NewRecorder()
	handler.GetHealth(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GetHealth status = %d, want 503", w.Code)
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" {
		t.Errorf("previous_status = %v, want healthy", fields["previous_status"])
	}
	if fields["current_status"] != "degraded" {
		t.Errorf("current_status = %v, want degraded", fields["current_status"])
	}
	if fields["reason"] != "error_rate_breach" {
		t.Errorf("reason = %v, want error_rate_breach", fields["reason"])
	}
}

func TestHandler_NotFound(t *testing.T) {
	handler := newTestHandler(nil, nil)
	req := httptest.NewRequest("GET", "/missing", nil)
	req = req.WithContext(withCorrelation(req.Context(), "corr-123", zap.NewNop()))

	w := httptest.NewRecorder()
	handler.NotFound(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("NotFound() status = %d, want 404", w.Code)
	}
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing error object: %v", body)
	}
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", errObj["code"])
	}
	if errObj["requestId"] != "corr-123" {
		t.Errorf("requestId = %v, want corr-123", errObj["requestId"])
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(nil, nil)

	w := httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest("POST", "/", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("MethodNotAllowed() status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "GET" {
		t.Errorf("Allow = %q, want GET", allow)
	}
	errObj := decodeBody(t, w)["error"].(map[string]interface{})
	if errObj["code"] != "METHOD_NOT_ALLOWED" {
		t.Errorf("code = %v, want METHOD_NOT_ALLOWED", errObj["code"])
	}
}
