package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{"generates when missing", "", false},
		{"reuses valid header", "existing-request-id-123", true},
		{"replaces header with spaces", "bad id", false},
		{"replaces header with newline", "id\nforged=1", false},
		{"replaces oversized header", strings.Repeat("a", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/payments/initiate", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if captured == "" {
				t.Fatal("expected request ID in context")
			}
			if got := rr.Header().Get(RequestIDHeader); got != captured {
				t.Errorf("response header = %q, want %q", got, captured)
			}
			if tt.wantSame {
				if captured != tt.header {
					t.Errorf("request ID = %q, want %q", captured, tt.header)
				}
				return
			}
			if _, err := uuid.Parse(captured); err != nil {
				t.Errorf("generated request ID %q is not a UUID: %v", captured, err)
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
