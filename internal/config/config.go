// Package config provides configuration loading and validation for the payment service.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the payment service.
type Config struct {
	// Server settings
	Port        int    `koanf:"server.port"`
	MetricsPort int    `koanf:"metrics.port"`
	Env         string `koanf:"env"`

	// Frontend origin used to build post-payment redirects
	FrontendOrigin string `koanf:"frontend.origin"`

	// Storage (both optional; in-memory implementations are used when unset)
	DatabaseURL string `koanf:"database.url"`
	RedisURL    string `koanf:"redis.url"`

	// Admin authentication (admin routes are disabled when unset)
	JWTSecret         string `koanf:"auth.jwt_secret"`
	JWTPreviousSecret string `koanf:"auth.jwt_previous_secret"`

	// Gateway (SSLCOMMERZ)
	Gateway GatewayConfig `koanf:"sslcommerz"`

	// SMTP (confirmation codes are logged instead of mailed when unset)
	SMTP SMTPConfig `koanf:"smtp"`

	// Rate limiting for payment initiation
	RateLimitRequests int           `koanf:"rate_limit.requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit.window"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing.enabled"`
	TracingEndpoint     string  `koanf:"tracing.endpoint"`
	TracingExporterType string  `koanf:"tracing.exporter_type"`
	TracingSampleRate   float64 `koanf:"tracing.sample_rate"`
	TracingInsecure     bool    `koanf:"tracing.insecure"`
}

// GatewayConfig holds the store credentials and callback URLs registered with the gateway.
type GatewayConfig struct {
	StoreID       string `koanf:"store.id"`
	StorePassword string `koanf:"store.password"`
	APIURL        string `koanf:"api.url"`
	ValidationURL string `koanf:"validation.url"`
	SuccessURL    string `koanf:"success.url"`
	FailURL       string `koanf:"fail.url"`
	CancelURL     string `koanf:"cancel.url"`
	IPNURL        string `koanf:"ipn.url"`

	// StrictSignatureVerification rejects callbacks whose verify_sign does not match.
	StrictSignatureVerification bool          `koanf:"strict_signature_verification"`
	Timeout                     time.Duration `koanf:"timeout"`
	MaxDeliveryAttempts         int           `koanf:"max_delivery_attempts"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// Configuration validation errors.
var (
	ErrMissingStoreID       = errors.New("SSLCOMMERZ_STORE_ID is required")
	ErrMissingStorePassword = errors.New("SSLCOMMERZ_STORE_PASSWORD is required")
	ErrMissingAPIURL        = errors.New("SSLCOMMERZ_API_URL is required")
	ErrMissingSuccessURL    = errors.New("SSLCOMMERZ_SUCCESS_URL is required")
	ErrMissingFailURL       = errors.New("SSLCOMMERZ_FAIL_URL is required")
	ErrMissingCancelURL     = errors.New("SSLCOMMERZ_CANCEL_URL is required")
	ErrMissingIPNURL        = errors.New("SSLCOMMERZ_IPN_URL is required")
	ErrMissingSMTPFrom      = errors.New("SMTP_FROM is required when SMTP_HOST is set")
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidDuration      = errors.New("value must be a valid duration")
	ErrInvalidAttempts      = errors.New("GATEWAY_MAX_DELIVERY_ATTEMPTS must be at least 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                        = 8080
	DefaultMetricsPort                 = 9090
	DefaultEnv                         = "development"
	DefaultFrontendOrigin              = "http://localhost:5173"
	DefaultStrictSignatureVerification = true
	DefaultGatewayTimeout              = 15 * time.Second
	DefaultMaxDeliveryAttempts         = 3
	DefaultSMTPPort                    = 587
	DefaultRateLimitRequests           = 30
	DefaultRateLimitWindow             = time.Minute
	DefaultTracingExporterType         = "otlp-http"
	DefaultTracingSampleRate           = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	port, err := getEnvIntOrDefault("PORT", k.Int("server.port"), DefaultPort)
	collect(err)
	metricsPort, err := getEnvIntOrDefault("METRICS_PORT", k.Int("metrics.port"), DefaultMetricsPort)
	collect(err)
	smtpPort, err := getEnvIntOrDefault("SMTP_PORT", k.Int("smtp.port"), DefaultSMTPPort)
	collect(err)
	rateLimitRequests, err := getEnvIntOrDefault("RATE_LIMIT_REQUESTS", k.Int("rate_limit.requests"), DefaultRateLimitRequests)
	collect(err)
	attempts, err := getEnvIntOrDefault("GATEWAY_MAX_DELIVERY_ATTEMPTS", k.Int("sslcommerz.max_delivery_attempts"), DefaultMaxDeliveryAttempts)
	collect(err)

	timeout, err := getEnvDurationOrDefault("GATEWAY_TIMEOUT", k.String("sslcommerz.timeout"), DefaultGatewayTimeout)
	collect(err)
	rateLimitWindow, err := getEnvDurationOrDefault("RATE_LIMIT_WINDOW", k.String("rate_limit.window"), DefaultRateLimitWindow)
	collect(err)

	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing.sample_rate"), DefaultTracingSampleRate)
	collect(err)

	cfg := &Config{
		Port:              port,
		MetricsPort:       metricsPort,
		Env:               getEnvOrDefaultMulti([]string{"ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		FrontendOrigin:    strings.TrimRight(getEnvOrDefault("FRONTEND_ORIGIN", k.String("frontend.origin"), DefaultFrontendOrigin), "/"),
		DatabaseURL:       getEnvOrKoanf("DATABASE_URL", k, "database.url"),
		RedisURL:          getEnvOrKoanf("REDIS_URL", k, "redis.url"),
		JWTSecret:         getEnvOrKoanf("JWT_SECRET", k, "auth.jwt_secret"),
		JWTPreviousSecret: getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "auth.jwt_previous_secret"),
		Gateway: GatewayConfig{
			StoreID:                     getEnvOrKoanf("SSLCOMMERZ_STORE_ID", k, "sslcommerz.store.id"),
			StorePassword:               getEnvOrKoanf("SSLCOMMERZ_STORE_PASSWORD", k, "sslcommerz.store.password"),
			APIURL:                      getEnvOrKoanf("SSLCOMMERZ_API_URL", k, "sslcommerz.api.url"),
			ValidationURL:               getEnvOrKoanf("SSLCOMMERZ_VALIDATION_URL", k, "sslcommerz.validation.url"),
			SuccessURL:                  getEnvOrKoanf("SSLCOMMERZ_SUCCESS_URL", k, "sslcommerz.success.url"),
			FailURL:                     getEnvOrKoanf("SSLCOMMERZ_FAIL_URL", k, "sslcommerz.fail.url"),
			CancelURL:                   getEnvOrKoanf("SSLCOMMERZ_CANCEL_URL", k, "sslcommerz.cancel.url"),
			IPNURL:                      getEnvOrKoanf("SSLCOMMERZ_IPN_URL", k, "sslcommerz.ipn.url"),
			StrictSignatureVerification: getEnvBoolOrKoanf("STRICT_SIGNATURE_VERIFICATION", k, "sslcommerz.strict_signature_verification", DefaultStrictSignatureVerification),
			Timeout:                     timeout,
			MaxDeliveryAttempts:         attempts,
		},
		SMTP: SMTPConfig{
			Host:     getEnvOrKoanf("SMTP_HOST", k, "smtp.host"),
			Port:     smtpPort,
			Username: getEnvOrKoanf("SMTP_USERNAME", k, "smtp.username"),
			Password: getEnvOrKoanf("SMTP_PASSWORD", k, "smtp.password"),
			From:     getEnvOrKoanf("SMTP_FROM", k, "smtp.from"),
		},
		RateLimitRequests:   rateLimitRequests,
		RateLimitWindow:     rateLimitWindow,
		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing.enabled", false),
		TracingEndpoint:     getEnvOrKoanf("OTEL_EXPORTER_OTLP_ENDPOINT", k, "tracing.endpoint"),
		TracingExporterType: getEnvOrDefault("TRACING_EXPORTER_TYPE", k.String("tracing.exporter_type"), DefaultTracingExporterType),
		TracingSampleRate:   sampleRate,
		TracingInsecure:     getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing.insecure", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrKoanf parses a boolean flag. Unrecognized env values are ignored.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			if envKey == "PORT" || envKey == "METRICS_PORT" {
				return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
			}
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault parses a Go duration string such as "15s" or "1m".
func getEnvDurationOrDefault(envKey string, koanfVal string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		raw = koanfVal
	}
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultVal, fmt.Errorf("%s=%q: %w", envKey, raw, ErrInvalidDuration)
	}
	return d, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Every gateway credential and callback URL is required so that a blank value
// fails startup instead of silently disabling payments.
func (c *Config) Validate() []error {
	var errs []error

	g := c.Gateway
	if strings.TrimSpace(g.StoreID) == "" {
		errs = append(errs, ErrMissingStoreID)
	}
	if strings.TrimSpace(g.StorePassword) == "" {
		errs = append(errs, ErrMissingStorePassword)
	}
	if strings.TrimSpace(g.APIURL) == "" {
		errs = append(errs, ErrMissingAPIURL)
	}
	if strings.TrimSpace(g.SuccessURL) == "" {
		errs = append(errs, ErrMissingSuccessURL)
	}
	if strings.TrimSpace(g.FailURL) == "" {
		errs = append(errs, ErrMissingFailURL)
	}
	if strings.TrimSpace(g.CancelURL) == "" {
		errs = append(errs, ErrMissingCancelURL)
	}
	if strings.TrimSpace(g.IPNURL) == "" {
		errs = append(errs, ErrMissingIPNURL)
	}
	if g.MaxDeliveryAttempts < 1 {
		errs = append(errs, ErrInvalidAttempts)
	}

	if c.SMTP.Enabled() && c.SMTP.From == "" {
		errs = append(errs, ErrMissingSMTPFrom)
	}

	return errs
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                          fmt.Sprintf("%d", c.Port),
		"metrics_port":                  fmt.Sprintf("%d", c.MetricsPort),
		"env":                           c.Env,
		"frontend_origin":               c.FrontendOrigin,
		"database_url":                  maskDatabaseURL(c.DatabaseURL),
		"redis_url":                     maskDatabaseURL(c.RedisURL),
		"jwt_secret":                    maskSecret(c.JWTSecret),
		"jwt_previous_secret":           maskSecret(c.JWTPreviousSecret),
		"store_id":                      c.Gateway.StoreID,
		"store_password":                maskSecret(c.Gateway.StorePassword),
		"api_url":                       c.Gateway.APIURL,
		"success_url":                   c.Gateway.SuccessURL,
		"fail_url":                      c.Gateway.FailURL,
		"cancel_url":                    c.Gateway.CancelURL,
		"ipn_url":                       c.Gateway.IPNURL,
		"strict_signature_verification": fmt.Sprintf("%t", c.Gateway.StrictSignatureVerification),
		"gateway_timeout":               c.Gateway.Timeout.String(),
		"max_delivery_attempts":         fmt.Sprintf("%d", c.Gateway.MaxDeliveryAttempts),
		"smtp_host":                     c.SMTP.Host,
		"smtp_password":                 maskSecret(c.SMTP.Password),
		"rate_limit":                    fmt.Sprintf("%d/%s", c.RateLimitRequests, c.RateLimitWindow),
		"tracing_enabled":               fmt.Sprintf("%t", c.TracingEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
