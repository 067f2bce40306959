// Package gateway talks to the SSLCOMMERZ hosted checkout API. It builds
// initiation requests, normalizes the gateway's responses, verifies callback
// signatures and infers the payment instrument from callback fields.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds a single initiation call.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

const userAgent = "PulseIQ-Payments/1.0"

// Config holds store credentials, callback URLs and fixed product metadata.
type Config struct {
	StoreID       string
	StorePassword string
	APIURL        string

	SuccessURL string
	FailURL    string
	CancelURL  string
	IPNURL     string

	ProductCategory string
	ProductName     string
	ProductProfile  string
	DefaultAddress  string
	City            string
	Postcode        string
	Country         string

	Timeout time.Duration
}

// Validate checks the settings needed to reach the gateway at all.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StoreID) == "" {
		return ErrMissingStoreID
	}
	if strings.TrimSpace(c.StorePassword) == "" {
		return ErrMissingStorePassword
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrMissingAPIURL
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ProductCategory == "" {
		c.ProductCategory = "healthcare"
	}
	if c.ProductName == "" {
		c.ProductName = "PulseIQ Healthcare Services"
	}
	if c.ProductProfile == "" {
		c.ProductProfile = "general"
	}
	if c.DefaultAddress == "" {
		c.DefaultAddress = "Dhaka"
	}
	if c.City == "" {
		c.City = "Dhaka"
	}
	if c.Postcode == "" {
		c.Postcode = "1000"
	}
	if c.Country == "" {
		c.Country = "Bangladesh"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// InitiateRequest carries the per-transaction values sent to the gateway.
type InitiateRequest struct {
	TransactionID   string
	Amount          decimal.Decimal
	Currency        string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
}

// Client sends initiation requests to the gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client. The default HTTP client is traced with
// otelhttp and bounded by cfg.Timeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Initiate posts a session request and returns the raw response body.
// It performs exactly one attempt; a retried POST could open a second
// session for the same customer.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	if err := c.cfg.Validate(); err != nil {
		return "", err
	}

	form := c.buildForm(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isDialFailure(err) {
			return "", fmt.Errorf("%w: %v", ErrNotDelivered, err)
		}
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

func (c *Client) buildForm(req InitiateRequest) url.Values {
	address := strings.TrimSpace(req.CustomerAddress)
	if address == "" {
		address = c.cfg.DefaultAddress
	}

	form := url.Values{}
	form.Set("store_id", c.cfg.StoreID)
	form.Set("store_passwd", c.cfg.StorePassword)
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("product_category", c.cfg.ProductCategory)
	form.Set("product_name", c.cfg.ProductName)
	form.Set("product_profile", c.cfg.ProductProfile)
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_add1", address)
	form.Set("cus_city", c.cfg.City)
	form.Set("cus_postcode", c.cfg.Postcode)
	form.Set("cus_country", c.cfg.Country)
	form.Set("cus_phone", req.CustomerPhone)
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("fail_url", c.cfg.FailURL)
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("ipn_url", c.cfg.IPNURL)
	return form
}

// isDialFailure reports whether err happened while establishing the
// connection, before any request bytes were written.
func isDialFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
