package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pulseiq/payments/internal/gateway"
	"github.com/pulseiq/payments/internal/tracing"
)

// DefaultCurrency is used when an initiation does not name one.
const DefaultCurrency = "BDT"

const unknownGatewayError = "Unknown error from gateway"

// transitionTimeout bounds status writes made after the gateway call.
const transitionTimeout = 5 * time.Second

// Gateway sends initiation requests to the payment gateway.
type Gateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (string, error)
}

// SignatureVerifier checks the verify_sign of a callback.
type SignatureVerifier interface {
	Verify(fields map[string]string) bool
}

// ReconcilerConfig controls callback trust and delivery retries.
type ReconcilerConfig struct {
	// StrictSignatureVerification rejects callbacks with a bad verify_sign
	// and leaves the record untouched. When false the mismatch is only logged.
	StrictSignatureVerification bool

	// MaxDeliveryAttempts bounds calls to the gateway when a request provably
	// never reached it. Other failures are never retried.
	MaxDeliveryAttempts int

	// RetryInitialInterval is the first backoff delay between delivery attempts.
	RetryInitialInterval time.Duration
}

// InitiateInput describes a payment a customer wants to make.
type InitiateInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Amount          decimal.Decimal
	Currency        string
	Description     string
}

// InitiateResult is the outcome of an initiation attempt. When Success is
// false, Message carries the best available diagnostic and Kind its class.
type InitiateResult struct {
	Success       bool
	TransactionID string
	GatewayURL    string
	Message       string
	Kind          Kind
}

// Reconciler drives payment records through initiation and gateway callbacks.
type Reconciler struct {
	repo     Repository
	gateway  Gateway
	verifier SignatureVerifier
	cfg      ReconcilerConfig
	metrics  *Metrics
	newID    func() string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMetrics records initiation and callback metrics.
func WithMetrics(m *Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithIDGenerator replaces NewTransactionID.
func WithIDGenerator(fn func() string) ReconcilerOption {
	return func(r *Reconciler) {
		r.newID = fn
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(repo Repository, gw Gateway, verifier SignatureVerifier, cfg ReconcilerConfig, opts ...ReconcilerOption) *Reconciler {
	if cfg.MaxDeliveryAttempts < 1 {
		cfg.MaxDeliveryAttempts = 1
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 250 * time.Millisecond
	}
	r := &Reconciler{
		repo:     repo,
		gateway:  gw,
		verifier: verifier,
		cfg:      cfg,
		newID:    NewTransactionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initiate creates a PENDING record, opens a gateway session and moves the
// record to PROCESSING or FAILED. Gateway-side failures are reported in the
// result; a returned error means no record was created.
func (r *Reconciler) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "payment.initiate")
	var spanErr error
	defer func() { endSpan(spanErr) }()

	if err := in.validate(); err != nil {
		spanErr = err
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	record := &Record{
		TransactionID:   r.newID(),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
		Amount:          in.Amount,
		Currency:        currency,
		PaymentMethod:   gateway.MethodPending,
		Status:          StatusPending,
		Description:     strings.TrimSpace(in.Description),
	}
	if err := r.repo.Create(ctx, record); err != nil {
		spanErr = err
		return nil, &Error{Op: "initiate", TransactionID: record.TransactionID, Message: "failed to create payment record", Err: err}
	}
	tracing.SetAttributes(ctx, attribute.String("payment.transaction_id", record.TransactionID))

	body, err := r.deliver(ctx, gateway.InitiateRequest{
		TransactionID:   record.TransactionID,
		Amount:          record.Amount,
		Currency:        record.Currency,
		CustomerName:    record.CustomerName,
		CustomerEmail:   record.CustomerEmail,
		CustomerPhone:   record.CustomerPhone,
		CustomerAddress: record.CustomerAddress,
	})
	if err != nil {
		spanErr = err
		kind := classifyGatewayError(err)
		r.transition(ctx, record.TransactionID, StatusFailed)
		r.metrics.incInitiation(kind.String())
		slog.ErrorContext(ctx, "payment initiation failed",
			slog.String("transaction_id", record.TransactionID),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return &InitiateResult{
			TransactionID: record.TransactionID,
			Message:       "Payment initiation failed: " + err.Error(),
			Kind:          kind,
		}, nil
	}

	fields := gateway.ParseResponse(body)
	status := gateway.ParseStatus(fields["status"])

	if status.IsSuccess() {
		if pageURL := strings.TrimSpace(fields["GatewayPageURL"]); pageURL != "" {
			r.transition(ctx, record.TransactionID, StatusProcessing)
			r.metrics.incInitiation("accepted")
			slog.InfoContext(ctx, "payment session opened",
				slog.String("transaction_id", record.TransactionID),
				slog.String("gateway_status", fields["status"]))
			return &InitiateResult{
				Success:       true,
				TransactionID: record.TransactionID,
				GatewayURL:    pageURL,
			}, nil
		}
		fields["failedreason"] = firstNonEmpty(fields["failedreason"], "gateway response has no GatewayPageURL")
	}

	kind := KindGatewayRejection
	if len(fields) == 0 {
		kind = KindParseFailure
	}
	message := rejectionMessage(fields)
	r.transition(ctx, record.TransactionID, StatusFailed)
	r.metrics.incInitiation(kind.String())
	slog.WarnContext(ctx, "gateway rejected payment initiation",
		slog.String("transaction_id", record.TransactionID),
		slog.String("kind", kind.String()),
		slog.String("reason", message))
	spanErr = errors.New(message)

	return &InitiateResult{
		TransactionID: record.TransactionID,
		Message:       message,
		Kind:          kind,
	}, nil
}

// ValidateCallback applies a gateway callback to the matching record and
// returns the record as stored afterwards. Replaying a callback is a no-op.
func (r *Reconciler) ValidateCallback(ctx context.Context, fields map[string]string) (*Record, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "payment.validate_callback")
	var spanErr error
	defer func() { endSpan(spanErr) }()

	txnID := strings.TrimSpace(fields["tran_id"])
	if txnID == "" {
		r.metrics.incCallback("not_found")
		spanErr = &Error{Kind: KindNotFound, Op: "validate_callback", Message: "callback has no tran_id"}
		return nil, spanErr
	}
	tracing.SetAttributes(ctx, attribute.String("payment.transaction_id", txnID))

	if _, err := r.repo.GetByTransactionID(ctx, txnID); err != nil {
		spanErr = r.lookupError(txnID, err)
		return nil, spanErr
	}

	if !r.verifier.Verify(fields) {
		r.metrics.incSignatureFailure()
		if r.cfg.StrictSignatureVerification {
			r.metrics.incCallback("signature_mismatch")
			slog.WarnContext(ctx, "rejecting callback with invalid signature",
				slog.String("transaction_id", txnID))
			spanErr = &Error{Kind: KindSignatureMismatch, Op: "validate_callback", TransactionID: txnID, Message: "verify_sign does not match"}
			return nil, spanErr
		}
		slog.WarnContext(ctx, "callback signature mismatch, continuing because strict verification is disabled",
			slog.String("transaction_id", txnID))
	}

	rawStatus := fields["status"]
	target, recognized := recordStatusFor(gateway.ParseStatus(rawStatus))
	if !recognized {
		slog.WarnContext(ctx, "unrecognized callback status, leaving payment status unchanged",
			slog.String("transaction_id", txnID),
			slog.String("status", rawStatus))
	}

	outcome := "unrecognized"
	updated, err := r.repo.Update(ctx, txnID, func(rec *Record) error {
		if gateway.IsUnsettledMethod(rec.PaymentMethod) {
			rec.PaymentMethod = gateway.DetectPaymentMethod(fields)
		}
		if !recognized {
			return nil
		}

		switch {
		case rec.Status == target:
			outcome = "replayed"
		case rec.Status.CanTransitionTo(target):
			rec.Status = target
			if target == StatusCompleted {
				rec.ValidationID = strings.TrimSpace(fields["val_id"])
			}
			outcome = "applied"
		default:
			outcome = "ignored"
			slog.WarnContext(ctx, "ignoring callback for settled payment",
				slog.String("transaction_id", txnID),
				slog.String("current_status", string(rec.Status)),
				slog.String("callback_status", rawStatus))
		}
		return nil
	})
	if err != nil {
		spanErr = r.lookupError(txnID, err)
		return nil, spanErr
	}

	r.metrics.incCallback(outcome)
	slog.InfoContext(ctx, "payment callback processed",
		slog.String("transaction_id", txnID),
		slog.String("status", string(updated.Status)),
		slog.String("payment_method", updated.PaymentMethod),
		slog.String("outcome", outcome))
	return updated, nil
}

// deliver calls the gateway, retrying only while the request provably never
// reached it.
func (r *Reconciler) deliver(ctx context.Context, req gateway.InitiateRequest) (string, error) {
	var body string
	operation := func() error {
		start := time.Now()
		b, err := r.gateway.Initiate(ctx, req)
		r.metrics.observeGateway(deliveryResult(err), time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, gateway.ErrNotDelivered) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.cfg.RetryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.cfg.MaxDeliveryAttempts-1)), ctx)

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "gateway unreachable, retrying initiation",
			slog.String("transaction_id", req.TransactionID),
			slog.Duration("next_attempt_in", next),
			slog.String("error", err.Error()))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return body, nil
}

// transition moves a record to next when the lifecycle allows it. The write
// outlives a cancelled request so the record never stays PENDING. Failures
// are logged; the caller has already decided the outcome it reports.
func (r *Reconciler) transition(ctx context.Context, txnID string, next Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transitionTimeout)
	defer cancel()

	_, err := r.repo.Update(ctx, txnID, func(rec *Record) error {
		if rec.Status.CanTransitionTo(next) {
			rec.Status = next
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to update payment status",
			slog.String("transaction_id", txnID),
			slog.String("status", string(next)),
			slog.String("error", err.Error()))
	}
}

func (r *Reconciler) lookupError(txnID string, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		r.metrics.incCallback("not_found")
		return &Error{Kind: KindNotFound, Op: "validate_callback", TransactionID: txnID, Message: "payment not found", Err: err}
	}
	r.metrics.incCallback("error")
	return &Error{Op: "validate_callback", TransactionID: txnID, Err: err}
}

func (in InitiateInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.CustomerName) == "" {
		missing = append(missing, "customer name")
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		missing = append(missing, "customer email")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		missing = append(missing, "customer phone")
	}
	if len(missing) > 0 {
		return &Error{Kind: KindInvalidInput, Op: "initiate", Message: strings.Join(missing, ", ") + " required"}
	}
	if !in.Amount.IsPositive() {
		return &Error{Kind: KindInvalidInput, Op: "initiate", Message: "amount must be greater than zero"}
	}
	return nil
}

// recordStatusFor maps a callback status onto the record lifecycle.
func recordStatusFor(s gateway.Status) (Status, bool) {
	switch s {
	case gateway.StatusValid, gateway.StatusSuccess:
		return StatusCompleted, true
	case gateway.StatusFailed:
		return StatusFailed, true
	case gateway.StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

func classifyGatewayError(err error) Kind {
	if gateway.IsConfigurationError(err) {
		return KindConfiguration
	}
	var statusErr *gateway.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
		return KindGatewayRejection
	}
	return KindNetwork
}

func deliveryResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrNotDelivered):
		return "not_delivered"
	case gateway.IsConfigurationError(err):
		return "configuration"
	default:
		return "error"
	}
}

// rejectionMessage picks the most specific reason the gateway gave.
func rejectionMessage(fields map[string]string) string {
	if msg := strings.TrimSpace(fields["error"]); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(fields["failedreason"]); msg != "" {
		return msg
	}
	if status := strings.TrimSpace(fields["status"]); status != "" {
		return fmt.Sprintf("Status: %s", status)
	}
	return unknownGatewayError
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
