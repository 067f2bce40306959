package payment

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

var transactionIDPattern = regexp.MustCompile(`^TXN_\d{13}_[0-9a-f]{8}$`)

func TestNewTransactionID_Format(t *testing.T) {
	id := NewTransactionID()
	if !transactionIDPattern.MatchString(id) {
		t.Errorf("NewTransactionID() = %q, want TXN_<millis>_<8 hex>", id)
	}
}

func TestNewTransactionID_EmbedsTime(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := newTransactionID(now)
	if id[:len("TXN_1700000000123_")] != "TXN_1700000000123_" {
		t.Errorf("newTransactionID() = %q, want prefix TXN_1700000000123_", id)
	}
}

func TestNewTransactionID_SameMillisecondDiffers(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newTransactionID(now)
		if seen[id] {
			t.Fatalf("duplicate id %q within the same millisecond", id)
		}
		seen[id] = true
	}
}

func TestNewTransactionID_Concurrent(t *testing.T) {
	const workers = 16
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NewTransactionID()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %q", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("generated %d unique ids, want %d", len(seen), workers*perWorker)
	}
}
