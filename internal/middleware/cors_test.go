package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestCORS() http.Handler {
	return CORS(CORSConfig{
		AllowedOrigins: []string{"http://localhost:5173/"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
		MaxAge:         600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed string
	}{
		{"no origin", http.MethodPost, "", false, http.StatusOK, ""},
		{"allowed origin", http.MethodPost, "http://localhost:5173", false, http.StatusOK, "http://localhost:5173"},
		{"gateway origin passes without headers", http.MethodPost, "https://sandbox.sslcommerz.com", false, http.StatusOK, ""},
		{"allowed preflight", http.MethodOptions, "http://localhost:5173", true, http.StatusNoContent, "http://localhost:5173"},
		{"disallowed preflight", http.MethodOptions, "https://evil.example", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/payments/initiate", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rr := httptest.NewRecorder()
			newTestCORS().ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if tt.preflight && tt.wantStatus == http.StatusNoContent {
				if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Idempotency-Key" {
					t.Errorf("Access-Control-Allow-Headers = %q", got)
				}
				if got := rr.Header().Get("Access-Control-Max-Age"); got != "600" {
					t.Errorf("Access-Control-Max-Age = %q, want 600", got)
				}
			}
		})
	}
}
