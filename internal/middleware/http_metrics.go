package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

var staticRoutes = map[string]bool{
	"/":                         true,
	"/health":                   true,
	"/health/live":              true,
	"/health/ready":             true,
	"/payments/initiate":        true,
	"/payments/initiate-direct": true,
	"/payments/success":         true,
	"/payments/fail":            true,
	"/payments/cancel":          true,
	"/payments/ipn":             true,
	"/admin/payments":           true,
	"/admin/payments/summary":   true,
}

// normalizePath maps request paths to route patterns so transaction ids do
// not become label values: /payments/TXN_1_ab/confirm becomes
// /payments/{tran_id}/confirm. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/payments/"); ok && rest != "" {
		id, suffix, hasSuffix := strings.Cut(rest, "/")
		switch {
		case id == "":
		case !hasSuffix:
			return "/payments/{tran_id}"
		case suffix == "confirm":
			return "/payments/{tran_id}/confirm"
		}
	}

	return "other"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics records duration, count and response size per route.
// Liveness and readiness probes are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
