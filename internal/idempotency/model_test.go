package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHash(t *testing.T) {
	// sha256("") is a well-known constant.
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Hash(nil); got != emptySHA {
		t.Errorf("Hash(nil) = %s, want %s", got, emptySHA)
	}

	a := Hash([]byte(`{"amount":"100.00"}`))
	b := Hash([]byte(`{"amount":"100.00"}`))
	c := Hash([]byte(`{"amount":"100.01"}`))
	if a != b {
		t.Error("Hash() should be deterministic")
	}
	if a == c {
		t.Error("Hash() should differ for different bodies")
	}
	if len(a) != 64 {
		t.Errorf("len(Hash()) = %d, want 64", len(a))
	}
}
