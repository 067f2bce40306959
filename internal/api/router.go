package api

import (
	"net/http"
)

// RouterConfig collects the handlers and per-route middleware of the API.
type RouterConfig struct {
	Payments  *PaymentHandlers
	Callbacks *CallbackHandlers
	Health    *HealthHandlers

	// Admin routes are only registered when both are set.
	Admin        *AdminHandlers
	RequireAdmin func(http.Handler) http.Handler

	// InitiateMiddleware wraps the initiation endpoints, typically with rate
	// limiting and idempotency. Optional.
	InitiateMiddleware func(http.Handler) http.Handler

	// ConfirmMiddleware wraps the confirmation code endpoint, typically with
	// a tighter rate limit. Optional.
	ConfirmMiddleware func(http.Handler) http.Handler
}

// NewRouter registers every route on a new ServeMux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r.Context(), http.StatusOK, map[string]string{
			"service": "pulseiq-payments",
			"status":  "ok",
		})
	})

	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
		mux.HandleFunc("GET /health/live", cfg.Health.Health)
		mux.HandleFunc("GET /health/ready", cfg.Health.Ready)
	}

	initiate := http.Handler(http.HandlerFunc(cfg.Payments.Initiate))
	if cfg.InitiateMiddleware != nil {
		initiate = cfg.InitiateMiddleware(initiate)
	}
	mux.Handle("POST /payments/initiate", initiate)
	mux.Handle("POST /payments/initiate-direct", initiate)
	mux.HandleFunc("GET /payments/{tran_id}", cfg.Payments.GetPayment)
	confirm := http.Handler(http.HandlerFunc(cfg.Payments.ConfirmPayment))
	if cfg.ConfirmMiddleware != nil {
		confirm = cfg.ConfirmMiddleware(confirm)
	}
	mux.Handle("POST /payments/{tran_id}/confirm", confirm)

	mux.HandleFunc("POST /payments/success", cfg.Callbacks.Success)
	mux.HandleFunc("POST /payments/fail", cfg.Callbacks.Fail)
	mux.HandleFunc("POST /payments/cancel", cfg.Callbacks.Cancel)
	mux.HandleFunc("POST /payments/ipn", cfg.Callbacks.IPN)

	if cfg.Admin != nil && cfg.RequireAdmin != nil {
		mux.Handle("GET /admin/payments", cfg.RequireAdmin(http.HandlerFunc(cfg.Admin.List)))
		mux.Handle("GET /admin/payments/summary", cfg.RequireAdmin(http.HandlerFunc(cfg.Admin.Summary)))
	}

	return mux
}
