package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	shouldFail bool
	err        error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.shouldFail {
		if m.err != nil {
			return m.err
		}
		return errors.New("health check failed")
	}
	return nil
}

// blockingHealthChecker waits for the context to end.
type blockingHealthChecker struct{}

func (blockingHealthChecker) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{MetricsEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for _, handler := range []http.HandlerFunc{handlers.Health, handlers.Ready} {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", w.Code)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name: "all healthy",
			config: HealthHandlersConfig{
				DBChecker:      &mockHealthChecker{},
				RedisChecker:   &mockHealthChecker{},
				GatewayChecker: &mockHealthChecker{},
				MetricsEnabled: true,
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "gateway": "ok", "metrics": "ok"},
		},
		{
			name:       "no checkers configured",
			config:     HealthHandlersConfig{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "gateway": "ok"},
		},
		{
			name: "database unhealthy",
			config: HealthHandlersConfig{
				DBChecker:      &mockHealthChecker{shouldFail: true},
				GatewayChecker: &mockHealthChecker{},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "redis": "ok", "gateway": "ok"},
		},
		{
			name: "gateway unreachable",
			config: HealthHandlersConfig{
				GatewayChecker: &mockHealthChecker{shouldFail: true, err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "gateway": "error"},
		},
		{
			name: "redis and gateway unhealthy",
			config: HealthHandlersConfig{
				RedisChecker:   &mockHealthChecker{shouldFail: true},
				GatewayChecker: &mockHealthChecker{shouldFail: true},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"redis": "error", "gateway": "error"},
		},
		{
			name: "slow checker times out",
			config: HealthHandlersConfig{
				GatewayChecker: blockingHealthChecker{},
				Timeout:        20 * time.Millisecond,
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"gateway": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.config)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()

			handlers.Ready(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Ready() status = %d, want %d", w.Code, tt.wantStatus)
			}

			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("Ready() body status = %s, want %s", response.Status, wantStatus)
			}
			for check, want := range tt.wantChecks {
				if got := response.Checks[check]; got != want {
					t.Errorf("check %s = %q, want %q", check, got, want)
				}
			}
		})
	}
}

func TestReady_MetricsOmittedWhenDisabled(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := response.Checks["metrics"]; ok {
		t.Error("expected no metrics check when metrics are disabled")
	}
}
