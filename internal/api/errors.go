// Package api provides the HTTP handlers of the payment service and its
// standardized error envelope.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pulseiq/payments/internal/middleware"
	"github.com/pulseiq/payments/internal/payment"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeSignatureMismatch indicates a callback whose verify_sign did not match.
	ErrCodeSignatureMismatch = "signature_mismatch"

	// ErrCodeGatewayRejected indicates the gateway refused the initiation.
	ErrCodeGatewayRejected = "gateway_rejected"

	// ErrCodeGatewayUnavailable indicates the gateway could not be reached
	// or answered with something unusable.
	ErrCodeGatewayUnavailable = "gateway_unavailable"

	// ErrCodeConfiguration indicates the gateway credentials are not configured.
	ErrCodeConfiguration = "configuration_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The code set on ctx with middleware.SetErrorCode is handed to the logging
// middleware so it shows up in the access log:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Payment not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeGatewayRejected:
		return http.StatusBadRequest
	case ErrCodeAuthFailed, ErrCodeSignatureMismatch:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeGatewayUnavailable:
		return http.StatusBadGateway
	case ErrCodeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCodeForKind maps a payment failure class onto an API error code.
func errorCodeForKind(kind payment.Kind) string {
	switch kind {
	case payment.KindInvalidInput:
		return ErrCodeValidation
	case payment.KindNotFound:
		return ErrCodeNotFound
	case payment.KindSignatureMismatch:
		return ErrCodeSignatureMismatch
	case payment.KindGatewayRejection:
		return ErrCodeGatewayRejected
	case payment.KindNetwork, payment.KindParseFailure:
		return ErrCodeGatewayUnavailable
	case payment.KindConfiguration:
		return ErrCodeConfiguration
	default:
		return ErrCodeInternal
	}
}
