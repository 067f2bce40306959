package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrGatewayNotConfigured is returned when no gateway URL is set.
var ErrGatewayNotConfigured = errors.New("gateway url not configured")

// GatewayChecker checks that the payment gateway host answers HTTP.
// The gateway has no health endpoint, so any response below 500 from its
// origin counts as reachable.
type GatewayChecker struct {
	url    string
	client *http.Client
}

// NewGatewayChecker creates a checker for the origin of apiURL.
func NewGatewayChecker(apiURL string) *GatewayChecker {
	origin := apiURL
	if u, err := url.Parse(apiURL); err == nil && u.Scheme != "" && u.Host != "" {
		origin = u.Scheme + "://" + u.Host + "/"
	}
	return &GatewayChecker{
		url: origin,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// HealthCheck sends HEAD to the gateway origin.
func (g *GatewayChecker) HealthCheck(ctx context.Context) error {
	if g.url == "" {
		return ErrGatewayNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway unhealthy: unexpected status code %d", resp.StatusCode)
	}
	return nil
}
