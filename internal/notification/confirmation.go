package notification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/pulseiq/payments/internal/otp"
)

// DefaultCodeTTL is how long a confirmation code stays valid.
const DefaultCodeTTL = 10 * time.Minute

// DefaultMaxAttempts is how many wrong codes burn the outstanding code.
const DefaultMaxAttempts = 5

const (
	confirmationKeyPrefix = "payment-confirmation:"
	attemptsKeyPrefix     = "payment-confirmation-attempts:"
)

// CodeLength is the number of digits in a confirmation code.
const CodeLength = 6

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Confirm your payment</h2>
  <p>Hello {{.Name}},</p>
  <p>Use the code below to confirm payment <strong>{{.TransactionID}}</strong>:</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>The code expires in {{.Minutes}} minutes. If you did not start this payment you can ignore this email.</p>
  <p>PulseIQ</p>
</body>
</html>`))

// Confirmations issues and checks single-use payment confirmation codes.
type Confirmations struct {
	store   otp.Store
	sender  Sender
	logger  *slog.Logger
	ttl     time.Duration
	maxMiss int64
	newCode func() (string, error)
}

// ConfirmationOption configures Confirmations.
type ConfirmationOption func(*Confirmations)

// WithCodeTTL overrides DefaultCodeTTL.
func WithCodeTTL(ttl time.Duration) ConfirmationOption {
	return func(c *Confirmations) { c.ttl = ttl }
}

// WithMaxAttempts overrides DefaultMaxAttempts. Values below 1 are ignored.
func WithMaxAttempts(n int) ConfirmationOption {
	return func(c *Confirmations) {
		if n > 0 {
			c.maxMiss = int64(n)
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(fn func() (string, error)) ConfirmationOption {
	return func(c *Confirmations) { c.newCode = fn }
}

// NewConfirmations creates a Confirmations service.
func NewConfirmations(store otp.Store, sender Sender, logger *slog.Logger, opts ...ConfirmationOption) *Confirmations {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Confirmations{
		store:   store,
		sender:  sender,
		logger:  logger,
		ttl:     DefaultCodeTTL,
		maxMiss: DefaultMaxAttempts,
		newCode: randomCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue stores a fresh code for transactionID and emails it to the customer.
// Issuing again replaces any earlier code.
func (c *Confirmations) Issue(ctx context.Context, transactionID, email, name string) error {
	if transactionID == "" {
		return errors.New("notification: transaction id is required")
	}

	code, err := c.newCode()
	if err != nil {
		return fmt.Errorf("notification: failed to generate code: %w", err)
	}

	if err := c.store.Put(ctx, confirmationKeyPrefix+transactionID, code, c.ttl); err != nil {
		return fmt.Errorf("notification: failed to store code: %w", err)
	}
	if err := c.store.Delete(ctx, attemptsKeyPrefix+transactionID); err != nil {
		return fmt.Errorf("notification: failed to reset attempts: %w", err)
	}

	msg, err := confirmationMessage(email, name, transactionID, code, c.ttl)
	if err != nil {
		return err
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notification: failed to send confirmation for %s: %w", transactionID, err)
	}

	c.logger.InfoContext(ctx, "payment confirmation issued",
		slog.String("transaction_id", transactionID),
		slog.Duration("ttl", c.ttl),
	)
	return nil
}

// Verify reports whether code matches the outstanding code for
// transactionID. A matching code is consumed. After maxAttempts wrong codes
// the outstanding code is discarded and every later guess fails.
func (c *Confirmations) Verify(ctx context.Context, transactionID, code string) (bool, error) {
	key := confirmationKeyPrefix + transactionID
	attemptsKey := attemptsKeyPrefix + transactionID

	stored, err := c.store.Get(ctx, key)
	if errors.Is(err, otp.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notification: failed to load code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		misses, err := c.store.Incr(ctx, attemptsKey, c.ttl)
		if err != nil {
			return false, fmt.Errorf("notification: failed to count attempt: %w", err)
		}
		if misses >= c.maxMiss {
			c.logger.WarnContext(ctx, "confirmation code discarded after repeated wrong attempts",
				slog.String("transaction_id", transactionID),
				slog.Int64("attempts", misses),
			)
			if err := c.store.Delete(ctx, key); err != nil {
				return false, fmt.Errorf("notification: failed to discard code: %w", err)
			}
		}
		return false, nil
	}

	if err := c.store.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("notification: failed to consume code: %w", err)
	}
	_ = c.store.Delete(ctx, attemptsKey)
	return true, nil
}

func confirmationMessage(email, name, transactionID, code string, ttl time.Duration) (Message, error) {
	if name == "" {
		name = "there"
	}
	minutes := int(ttl / time.Minute)

	var html strings.Builder
	err := confirmationHTML.Execute(&html, struct {
		Name          string
		TransactionID string
		Code          string
		Minutes       int
	}{name, transactionID, code, minutes})
	if err != nil {
		return Message{}, fmt.Errorf("notification: failed to render confirmation: %w", err)
	}

	text := fmt.Sprintf("Hello %s,\n\nYour PulseIQ payment confirmation code for %s is %s.\nIt expires in %d minutes.\n",
		name, transactionID, code, minutes)

	return Message{
		To:      email,
		Subject: "Your PulseIQ payment confirmation code",
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
