package gateway

import (
	"errors"
	"fmt"
)

// Configuration errors returned before any network I/O.
var (
	ErrMissingStoreID       = errors.New("gateway store id is not configured")
	ErrMissingStorePassword = errors.New("gateway store password is not configured")
	ErrMissingAPIURL        = errors.New("gateway API URL is not configured")
)

// ErrNotDelivered marks a transport failure where the connection to the
// gateway was never established, so the request cannot have been processed.
var ErrNotDelivered = errors.New("gateway request not delivered")

// HTTPStatusError is returned when the gateway answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, e.Body)
}

// IsConfigurationError reports whether err stems from missing gateway settings.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingStoreID) ||
		errors.Is(err, ErrMissingStorePassword) ||
		errors.Is(err, ErrMissingAPIURL)
}
