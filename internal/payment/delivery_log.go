package payment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// CallbackDelivery is an accepted gateway callback.
type CallbackDelivery struct {
	TransactionID string
	ValidationID  string
	Status        string
	ReceivedAt    time.Time
}

func (d CallbackDelivery) key() string {
	return d.TransactionID + "|" + d.ValidationID + "|" + d.Status
}

// DeliveryLog records callbacks that passed validation so repeated
// deliveries of the same notification can be told apart from new ones.
type DeliveryLog interface {
	// RecordDelivery stores the delivery.
	// Returns ErrDuplicateDelivery if the same transaction, val_id and status were recorded before.
	RecordDelivery(ctx context.Context, d CallbackDelivery) error
}

// InMemoryDeliveryLog implements DeliveryLog with in-memory storage.
type InMemoryDeliveryLog struct {
	mu         sync.Mutex
	deliveries map[string]CallbackDelivery
}

// NewInMemoryDeliveryLog creates a new in-memory delivery log.
func NewInMemoryDeliveryLog() *InMemoryDeliveryLog {
	return &InMemoryDeliveryLog{
		deliveries: make(map[string]CallbackDelivery),
	}
}

// RecordDelivery records a callback delivery.
func (l *InMemoryDeliveryLog) RecordDelivery(_ context.Context, d CallbackDelivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.deliveries[d.key()]; exists {
		return ErrDuplicateDelivery
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now()
	}
	l.deliveries[d.key()] = d
	return nil
}

// Len returns the number of distinct deliveries recorded.
func (l *InMemoryDeliveryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deliveries)
}

// PostgresDeliveryLog implements DeliveryLog on the payment_callback_deliveries table.
type PostgresDeliveryLog struct {
	db *sql.DB
}

// NewPostgresDeliveryLog creates a new PostgresDeliveryLog.
func NewPostgresDeliveryLog(db *sql.DB) *PostgresDeliveryLog {
	return &PostgresDeliveryLog{db: db}
}

// RecordDelivery inserts the delivery, treating a conflict as a duplicate.
func (l *PostgresDeliveryLog) RecordDelivery(ctx context.Context, d CallbackDelivery) error {
	query := `
		INSERT INTO payment_callback_deliveries (transaction_id, validation_id, status, received_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (transaction_id, validation_id, status) DO NOTHING
	`
	res, err := l.db.ExecContext(ctx, query, d.TransactionID, d.ValidationID, d.Status)
	if err != nil {
		return fmt.Errorf("failed to record callback delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrDuplicateDelivery
	}
	return nil
}
