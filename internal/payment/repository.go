package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Repository persists payment records keyed by transaction id.
type Repository interface {
	// Create stores a new record. Returns ErrDuplicateTransaction if the id exists.
	Create(ctx context.Context, record *Record) error

	// GetByTransactionID returns a copy of the record or ErrRecordNotFound.
	GetByTransactionID(ctx context.Context, transactionID string) (*Record, error)

	// Update loads the record, applies fn and saves the result as one atomic
	// unit per transaction id. If fn returns an error nothing is saved.
	Update(ctx context.Context, transactionID string, fn func(*Record) error) (*Record, error)

	// ListByCustomerEmail returns a customer's records, newest first.
	ListByCustomerEmail(ctx context.Context, email string) ([]*Record, error)

	// ListByStatus returns records in a status, newest first.
	ListByStatus(ctx context.Context, status Status) ([]*Record, error)

	// Summarize returns count and total amount per status.
	Summarize(ctx context.Context) ([]StatusSummary, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory payment repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Create adds a new payment record.
func (r *InMemoryRepository) Create(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.TransactionID]; exists {
		return ErrDuplicateTransaction
	}

	now := r.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	// Copy to prevent external mutation
	copied := *record
	r.records[record.TransactionID] = &copied
	return nil
}

// GetByTransactionID retrieves a payment record by transaction id.
func (r *InMemoryRepository) GetByTransactionID(_ context.Context, transactionID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[transactionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

// Update applies fn to a copy of the record under the write lock.
func (r *InMemoryRepository) Update(_ context.Context, transactionID string, fn func(*Record) error) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[transactionID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	working := *stored
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.TransactionID = transactionID
	if working.stateChanged(stored) {
		working.UpdatedAt = r.now()
	}

	saved := working
	r.records[transactionID] = &saved
	return &working, nil
}

// ListByCustomerEmail returns all records for an email address.
func (r *InMemoryRepository) ListByCustomerEmail(_ context.Context, email string) ([]*Record, error) {
	return r.filter(func(rec *Record) bool { return rec.CustomerEmail == email }), nil
}

// ListByStatus returns all records in the given status.
func (r *InMemoryRepository) ListByStatus(_ context.Context, status Status) ([]*Record, error) {
	return r.filter(func(rec *Record) bool { return rec.Status == status }), nil
}

// Summarize aggregates record counts and amounts per status.
func (r *InMemoryRepository) Summarize(_ context.Context) ([]StatusSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := make(map[Status]*StatusSummary)
	for _, rec := range r.records {
		s, ok := byStatus[rec.Status]
		if !ok {
			s = &StatusSummary{Status: rec.Status, Total: decimal.Zero}
			byStatus[rec.Status] = s
		}
		s.Count++
		s.Total = s.Total.Add(rec.Amount)
	}

	var out []StatusSummary
	for _, status := range AllStatuses {
		if s, ok := byStatus[status]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) filter(match func(*Record) bool) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Record
	for _, rec := range r.records {
		if match(rec) {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TransactionID > out[j].TransactionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
