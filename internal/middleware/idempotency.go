package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pulseiq/payments/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader is set on responses served from the cache.
const IdempotentReplayHeader = "Idempotent-Replayed"

// maxIdempotentBodyBytes bounds the request body hashed for key reuse checks.
const maxIdempotentBodyBytes = 1 << 20

// idempotencyResponseWriter tees the response so it can be cached.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency replays the stored response when a POST to one of routes
// repeats an Idempotency-Key. Requests without the header are served
// normally. Only 2xx responses are stored. Reusing a key with a different
// body or route is rejected with 422, and a repeat that arrives while the
// first request is still running gets 409.
func Idempotency(repo idempotency.Repository, routes map[string]bool, metrics *Metrics) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		inFlight = make(map[string]bool)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !routes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					writeJSONError(w, r, http.StatusBadRequest, "idempotency_key_too_long", "Idempotency-Key exceeds maximum length of 64 characters")
					return
				}
				writeJSONError(w, r, http.StatusBadRequest, "invalid_idempotency_key", "Invalid Idempotency-Key")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes))
			if err != nil {
				writeJSONError(w, r, http.StatusBadRequest, "bad_request", "Failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := idempotency.Hash(body)

			existing, err := repo.Get(key)
			switch {
			case err == nil:
				if existing.RequestHash != requestHash || existing.Route != r.URL.Path {
					writeJSONError(w, r, http.StatusUnprocessableEntity, "idempotency_key_reused",
						"Idempotency-Key was already used with a different request")
					return
				}
				slog.InfoContext(r.Context(), "replaying idempotent response",
					"key", key,
					"transaction_id", existing.TransactionID,
					"status", existing.ResponseStatusCode,
				)
				metrics.incIdempotentReplay()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(existing.ResponseStatusCode)
				_, _ = io.WriteString(w, existing.ResponseBody)
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				slog.ErrorContext(r.Context(), "failed to check idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			mu.Lock()
			if inFlight[key] {
				mu.Unlock()
				writeJSONError(w, r, http.StatusConflict, "idempotency_key_in_progress",
					"A request with this Idempotency-Key is still being processed")
				return
			}
			inFlight[key] = true
			mu.Unlock()
			defer func() {
				mu.Lock()
				delete(inFlight, key)
				mu.Unlock()
			}()

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}

			responseBody := capture.body.String()
			var parsed struct {
				TransactionID string `json:"transaction_id"`
			}
			_ = json.Unmarshal(capture.body.Bytes(), &parsed)

			record := &idempotency.Record{
				Key:                key,
				Route:              r.URL.Path,
				RequestHash:        requestHash,
				TransactionID:      parsed.TransactionID,
				ResponseHash:       idempotency.Hash(capture.body.Bytes()),
				ResponseBody:       responseBody,
				ResponseStatusCode: capture.statusCode,
			}
			if err := repo.Store(record); err != nil {
				slog.ErrorContext(r.Context(), "failed to store idempotency key", "key", key, "error", err)
			}
		})
	}
}
