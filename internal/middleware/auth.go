package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pulseiq/payments/internal/auth"
)

// AdminTokenValidator validates admin bearer tokens.
type AdminTokenValidator interface {
	ValidateAdminToken(token string) (*auth.Claims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token with 401.
// The token subject is stored in the request context (see GetSubject).
func RequireAdmin(validator AdminTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSONError(w, r, http.StatusUnauthorized, "auth_failed", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateAdminToken(strings.TrimSpace(token))
			if err != nil {
				message := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					message = "Token has expired"
				}
				writeJSONError(w, r, http.StatusUnauthorized, "auth_failed", message)
				return
			}

			ctx := SetSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes the API error envelope
// {"error": {"code": "...", "message": "..."}} and records code for logging.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))

	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
