// Package payment holds the payment record, its persistence and the
// reconciler that drives a record through gateway initiation and callbacks.
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled}

var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether a record may move from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseRecordStatus validates a stored or user-supplied status string.
func ParseRecordStatus(raw string) (Status, bool) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Record is a payment made through the hosted checkout gateway.
type Record struct {
	TransactionID   string          `json:"transaction_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"payment_method"`
	Status          Status          `json:"status"`
	Description     string          `json:"description,omitempty"`
	ValidationID    string          `json:"validation_id,omitempty"` // gateway val_id of the accepted callback
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// stateChanged reports whether any field the reconciler mutates differs.
func (r *Record) stateChanged(prev *Record) bool {
	return r.Status != prev.Status ||
		r.PaymentMethod != prev.PaymentMethod ||
		r.ValidationID != prev.ValidationID
}

// StatusSummary aggregates records sharing a status.
type StatusSummary struct {
	Status Status          `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total_amount"`
}
