package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testConfig(apiURL string) Config {
	return Config{
		StoreID:       testStoreID,
		StorePassword: testStorePassword,
		APIURL:        apiURL,
		SuccessURL:    "https://api.pulseiq.example/payments/success",
		FailURL:       "https://api.pulseiq.example/payments/fail",
		CancelURL:     "https://api.pulseiq.example/payments/cancel",
		IPNURL:        "https://api.pulseiq.example/payments/ipn",
		Timeout:       2 * time.Second,
	}
}

func testRequest() InitiateRequest {
	return InitiateRequest{
		TransactionID: "TXN_1700000000000_deadbeef",
		Amount:        decimal.RequireFromString("1500"),
		Currency:      "BDT",
		CustomerName:  "Rahim Uddin",
		CustomerEmail: "rahim@example.com",
		CustomerPhone: "+8801700000000",
	}
}

func TestClient_Initiate_SendsForm(t *testing.T) {
	var gotForm url.Values
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(raw))
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","GatewayPageURL":"https://gw.example.com/pay"}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	body, err := client.Initiate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if ParseResponse(body)["GatewayPageURL"] != "https://gw.example.com/pay" {
		t.Errorf("Initiate() body = %q, want gateway response verbatim", body)
	}

	if ct := gotHeaders.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q, want application/x-www-form-urlencoded", ct)
	}
	if gotHeaders.Get("Accept") != "*/*" {
		t.Errorf("Accept = %q, want */*", gotHeaders.Get("Accept"))
	}
	if gotHeaders.Get("User-Agent") == "" {
		t.Error("User-Agent header not set")
	}

	want := map[string]string{
		"store_id":         testStoreID,
		"store_passwd":     testStorePassword,
		"total_amount":     "1500.00",
		"currency":         "BDT",
		"tran_id":          "TXN_1700000000000_deadbeef",
		"product_category": "healthcare",
		"product_name":     "PulseIQ Healthcare Services",
		"product_profile":  "general",
		"cus_name":         "Rahim Uddin",
		"cus_email":        "rahim@example.com",
		"cus_add1":         "Dhaka",
		"cus_city":         "Dhaka",
		"cus_postcode":     "1000",
		"cus_country":      "Bangladesh",
		"cus_phone":        "+8801700000000",
		"shipping_method":  "NO",
		"num_of_item":      "1",
		"success_url":      "https://api.pulseiq.example/payments/success",
		"fail_url":         "https://api.pulseiq.example/payments/fail",
		"cancel_url":       "https://api.pulseiq.example/payments/cancel",
		"ipn_url":          "https://api.pulseiq.example/payments/ipn",
	}
	for key, val := range want {
		if got := gotForm.Get(key); got != val {
			t.Errorf("form[%s] = %q, want %q", key, got, val)
		}
	}
	if len(gotForm) != len(want) {
		t.Errorf("form has %d fields, want %d", len(gotForm), len(want))
	}
}

func TestClient_Initiate_UsesCustomerAddress(t *testing.T) {
	var address string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		address = r.PostForm.Get("cus_add1")
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer srv.Close()

	req := testRequest()
	req.CustomerAddress = "House 12, Road 5, Dhanmondi"
	if _, err := NewClient(testConfig(srv.URL)).Initiate(context.Background(), req); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if address != "House 12, Road 5, Dhanmondi" {
		t.Errorf("cus_add1 = %q, want customer address", address)
	}
}

func TestClient_Initiate_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing store id", func(c *Config) { c.StoreID = " " }, ErrMissingStoreID},
		{"missing password", func(c *Config) { c.StorePassword = "" }, ErrMissingStorePassword},
		{"missing api url", func(c *Config) { c.APIURL = "" }, ErrMissingAPIURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
			}))
			defer srv.Close()

			cfg := testConfig(srv.URL)
			tt.mutate(&cfg)

			_, err := NewClient(cfg).Initiate(context.Background(), testRequest())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Initiate() error = %v, want %v", err, tt.wantErr)
			}
			if !IsConfigurationError(err) {
				t.Errorf("IsConfigurationError(%v) = false, want true", err)
			}
			if calls != 0 {
				t.Errorf("gateway called %d times, want 0", calls)
			}
		})
	}
}

func TestClient_Initiate_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Initiate(context.Background(), testRequest())
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Initiate() error = %v, want *HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusBadGateway)
	}
	if statusErr.Body != "upstream exploded" {
		t.Errorf("Body = %q, want upstream exploded", statusErr.Body)
	}
	if errors.Is(err, ErrNotDelivered) {
		t.Error("HTTP status error must not be reported as undelivered")
	}
}

func TestClient_Initiate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	apiURL := srv.URL
	srv.Close()

	_, err := NewClient(testConfig(apiURL)).Initiate(context.Background(), testRequest())
	if !errors.Is(err, ErrNotDelivered) {
		t.Errorf("Initiate() error = %v, want ErrNotDelivered", err)
	}
}

func TestClient_Initiate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond

	_, err := NewClient(cfg).Initiate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Initiate() error = nil, want timeout")
	}
	if errors.Is(err, ErrNotDelivered) {
		t.Error("timeout after connect must not be reported as undelivered")
	}
}
