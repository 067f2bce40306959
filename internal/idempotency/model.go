// Package idempotency stores the responses of payment initiation requests so
// that a client retrying with the same Idempotency-Key gets the original
// result instead of a second payment.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to create a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is invalid.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// Record is a cached initiation response.
type Record struct {
	Key                string    `json:"key"`
	Route              string    `json:"route"`
	RequestHash        string    `json:"request_hash"`
	TransactionID      string    `json:"transaction_id,omitempty"`
	ResponseHash       string    `json:"response_hash"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
	CreatedAt          time.Time `json:"created_at"`
}

// ValidateKey checks if an idempotency key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Hash returns the hex SHA-256 of body. It is used both to detect a key
// reused with a different request and to check cached responses.
func Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Repository defines methods for idempotency record persistence.
type Repository interface {
	// Get returns ErrKeyNotFound if the key doesn't exist.
	Get(key string) (*Record, error)

	// Store returns ErrKeyExists if the key already exists.
	Store(record *Record) error

	// DeleteOlderThan removes records created more than age ago.
	DeleteOlderThan(age time.Duration) (int64, error)
}
