package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pulseiq/payments/internal/tracing"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

const recordColumns = `transaction_id, customer_name, customer_email, customer_phone, customer_address,
	amount, currency, payment_method, status, description, validation_id, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status string
	err := row.Scan(
		&rec.TransactionID,
		&rec.CustomerName,
		&rec.CustomerEmail,
		&rec.CustomerPhone,
		&rec.CustomerAddress,
		&rec.Amount,
		&rec.Currency,
		&rec.PaymentMethod,
		&status,
		&rec.Description,
		&rec.ValidationID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}

// Create inserts a new payment record.
func (r *PostgresRepository) Create(ctx context.Context, record *Record) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "payments", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO payments (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()), NOW())
		RETURNING created_at, updated_at
	`

	var createdAt sql.NullTime
	if !record.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: record.CreatedAt, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query,
		record.TransactionID,
		record.CustomerName,
		record.CustomerEmail,
		record.CustomerPhone,
		record.CustomerAddress,
		record.Amount,
		record.Currency,
		record.PaymentMethod,
		string(record.Status),
		record.Description,
		record.ValidationID,
		createdAt,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert payment %s: %w", record.TransactionID, err)
	}
	return nil
}

// GetByTransactionID retrieves a payment record by transaction id.
func (r *PostgresRepository) GetByTransactionID(ctx context.Context, transactionID string) (*Record, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "payments", tracing.DBOperationQuery)
	defer endSpan(nil)

	query := `SELECT ` + recordColumns + ` FROM payments WHERE transaction_id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %s: %w", transactionID, err)
	}
	return rec, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction.
func (r *PostgresRepository) Update(ctx context.Context, transactionID string, fn func(*Record) error) (_ *Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "payments", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction",
				slog.String("transaction_id", transactionID),
				slog.String("error", err.Error()))
		}
	}()

	query := `SELECT ` + recordColumns + ` FROM payments WHERE transaction_id = $1 FOR UPDATE`
	stored, err := scanRecord(tx.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment %s: %w", transactionID, err)
	}

	working := *stored
	if err = fn(&working); err != nil {
		return nil, err
	}
	working.TransactionID = transactionID

	if working.stateChanged(stored) {
		update := `
			UPDATE payments
			SET payment_method = $2, status = $3, validation_id = $4, updated_at = NOW()
			WHERE transaction_id = $1
			RETURNING updated_at
		`
		err = tx.QueryRowContext(ctx, update,
			transactionID,
			working.PaymentMethod,
			string(working.Status),
			working.ValidationID,
		).Scan(&working.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update payment %s: %w", transactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment %s: %w", transactionID, err)
	}
	return &working, nil
}

// ListByCustomerEmail returns a customer's records, newest first.
func (r *PostgresRepository) ListByCustomerEmail(ctx context.Context, email string) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payments WHERE customer_email = $1 ORDER BY created_at DESC, transaction_id DESC`
	return r.list(ctx, query, email)
}

// ListByStatus returns records in a status, newest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payments WHERE status = $1 ORDER BY created_at DESC, transaction_id DESC`
	return r.list(ctx, query, string(status))
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*Record, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "payments", tracing.DBOperationQuery)
	defer endSpan(nil)

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return out, nil
}

// Summarize returns count and total amount per status.
func (r *PostgresRepository) Summarize(ctx context.Context) ([]StatusSummary, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		GROUP BY status
	`
	ctx, endSpan := tracing.StartDBSpan(ctx, "payments", tracing.DBOperationQuery)
	defer endSpan(nil)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}
	defer rows.Close()

	byStatus := make(map[Status]StatusSummary)
	for rows.Next() {
		var status string
		var count int64
		var total decimal.Decimal
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		byStatus[Status(status)] = StatusSummary{Status: Status(status), Count: count, Total: total}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary: %w", err)
	}

	var out []StatusSummary
	for _, status := range AllStatuses {
		if s, ok := byStatus[status]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
