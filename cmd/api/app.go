package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pulseiq/payments/internal/api"
	"github.com/pulseiq/payments/internal/auth"
	"github.com/pulseiq/payments/internal/config"
	"github.com/pulseiq/payments/internal/db"
	"github.com/pulseiq/payments/internal/gateway"
	"github.com/pulseiq/payments/internal/health"
	"github.com/pulseiq/payments/internal/idempotency"
	"github.com/pulseiq/payments/internal/middleware"
	"github.com/pulseiq/payments/internal/notification"
	"github.com/pulseiq/payments/internal/otp"
	"github.com/pulseiq/payments/internal/payment"
)

// Intervals of the in-memory housekeeping loops.
const (
	otpSweepInterval         = time.Minute
	rateLimitCleanupInterval = 5 * time.Minute
	idempotencyCleanup       = time.Hour
)

// app is the fully wired service.
type app struct {
	handler  http.Handler
	metrics  http.Handler
	payments *api.PaymentHandlers

	// background loops started by run and stopped on shutdown
	background []func(context.Context)
	closers    []func() error
}

func (a *app) close(logger *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("failed to close resource", "error", err)
		}
	}
}

// newApp wires storage, the gateway client, the reconciler and the HTTP
// surface. PostgreSQL and Redis are used when configured; otherwise
// in-memory implementations keep the service usable for development.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := payment.NewMetrics()
	if err := paymentMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register payment metrics: %w", err)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}
	a.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	var (
		repo         payment.Repository
		deliveries   payment.DeliveryLog
		dbChecker    api.HealthChecker
		redisChecker api.HealthChecker
		otpStore     otp.Store
		limitStore   middleware.RateLimitStore
	)

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig(), logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		repo = payment.NewPostgresRepository(conn, logger)
		deliveries = payment.NewPostgresDeliveryLog(conn)
		dbChecker = health.NewDBChecker(conn)
	} else {
		logger.Warn("DATABASE_URL not set, payments are kept in memory and lost on restart")
		repo = payment.NewInMemoryRepository()
		deliveries = payment.NewInMemoryDeliveryLog()
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close(logger)
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		otpStore = otp.NewRedisStore(client)
		limitStore = middleware.NewRedisRateLimitStore(client, httpMetrics)
		redisChecker = health.NewRedisChecker(client)
	} else {
		memStore := otp.NewMemoryStore()
		memLimits := middleware.NewInMemoryRateLimitStore()
		otpStore = memStore
		limitStore = memLimits
		a.background = append(a.background,
			func(ctx context.Context) { otp.RunPeriodicSweep(ctx, memStore, otpSweepInterval, logger) },
			func(ctx context.Context) { memLimits.RunPeriodicCleanup(ctx, rateLimitCleanupInterval) },
		)
	}

	var sender notification.Sender
	if cfg.SMTP.Enabled() {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		logger.Info("SMTP_HOST not set, confirmation codes are written to the log")
		sender = notification.NewLogSender(logger)
	}
	confirmations := notification.NewConfirmations(otpStore, sender, logger)

	g := cfg.Gateway
	client := gateway.NewClient(gateway.Config{
		StoreID:       g.StoreID,
		StorePassword: g.StorePassword,
		APIURL:        g.APIURL,
		SuccessURL:    g.SuccessURL,
		FailURL:       g.FailURL,
		CancelURL:     g.CancelURL,
		IPNURL:        g.IPNURL,
		Timeout:       g.Timeout,
	})
	reconciler := payment.NewReconciler(repo, client,
		gateway.NewVerifier(g.StoreID, g.StorePassword),
		payment.ReconcilerConfig{
			StrictSignatureVerification: g.StrictSignatureVerification,
			MaxDeliveryAttempts:         g.MaxDeliveryAttempts,
		},
		payment.WithMetrics(paymentMetrics),
	)
	if !g.StrictSignatureVerification {
		logger.Warn("STRICT_SIGNATURE_VERIFICATION is disabled, callbacks with a bad verify_sign will be applied")
	}

	limit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
	}
	if err := limit.Validate(); err != nil {
		logger.Warn("invalid rate limit settings, using defaults", "error", err)
		limit = middleware.DefaultInitiateLimit()
	}

	idemRepo := idempotency.NewInMemoryRepository()
	a.background = append(a.background, func(ctx context.Context) {
		idempotency.RunPeriodicCleanup(ctx, idemRepo, idempotencyCleanup, idempotency.DefaultExpiry)
	})
	idempotentRoutes := map[string]bool{
		"/payments/initiate":        true,
		"/payments/initiate-direct": true,
	}
	rateLimit := middleware.RateLimiter(limitStore, limit,
		middleware.PrefixKeyFunc("initiate", middleware.IPKeyFunc()), httpMetrics)
	confirmLimit := middleware.RateLimiter(limitStore, middleware.DefaultConfirmLimit(),
		middleware.PrefixKeyFunc("confirm", middleware.IPKeyFunc()), httpMetrics)
	idempotent := middleware.Idempotency(idemRepo, idempotentRoutes, httpMetrics)

	gatewayTarget := g.ValidationURL
	if gatewayTarget == "" {
		gatewayTarget = g.APIURL
	}

	a.payments = api.NewPaymentHandlers(reconciler, repo, confirmations)
	routes := api.RouterConfig{
		Payments:  a.payments,
		Callbacks: api.NewCallbackHandlers(reconciler, deliveries, paymentMetrics, cfg.FrontendOrigin),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:      dbChecker,
			RedisChecker:   redisChecker,
			GatewayChecker: health.NewGatewayChecker(gatewayTarget),
			MetricsEnabled: true,
		}),
		InitiateMiddleware: func(next http.Handler) http.Handler {
			return rateLimit(idempotent(next))
		},
		ConfirmMiddleware: confirmLimit,
	}

	if cfg.JWTSecret != "" {
		tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTPreviousSecret)
		routes.Admin = api.NewAdminHandlers(repo)
		routes.RequireAdmin = middleware.RequireAdmin(tokens)
	} else {
		logger.Info("JWT_SECRET not set, admin routes are disabled")
	}

	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: []string{cfg.FrontendOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.IdempotencyKeyHeader, "X-Request-ID"},
		MaxAge:         600,
	})

	// RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> routes
	var handler http.Handler = api.NewRouter(routes)
	handler = cors(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.Logging(logger)(handler)
	a.handler = middleware.RequestID(handler)

	return a, nil
}
