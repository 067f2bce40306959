package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStore_PutGet(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Put(ctx, "a@example.com", "123456", 10*time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "123456" {
		t.Errorf("Get() = %q, want %q", got, "123456")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrNotFound)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"before expiry", 9*time.Minute + 59*time.Second, nil},
		{"at expiry", 10 * time.Minute, ErrNotFound},
		{"after expiry", 11 * time.Minute, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, clock := newTestStore()
			ctx := context.Background()
			_ = store.Put(ctx, "k", "v", 10*time.Minute)

			clock.Advance(tt.advance)

			_, err := store.Get(ctx, "k")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_ExpiredReadRemovesEntry(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()
	_ = store.Put(ctx, "k", "v", time.Minute)

	clock.Advance(2 * time.Minute)
	_, _ = store.Get(ctx, "k")

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	_ = store.Put(ctx, "k", "old", time.Minute)
	clock.Advance(30 * time.Second)
	_ = store.Put(ctx, "k", "new", time.Minute)
	clock.Advance(45 * time.Second)

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestMemoryStore_Incr(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "attempts", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if got != want {
			t.Errorf("Incr() = %d, want %d", got, want)
		}
		clock.Advance(20 * time.Second)
	}

	// The window started on the first increment and has now run out.
	clock.Advance(time.Second)
	got, err := store.Incr(ctx, "attempts", time.Minute)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Incr() after expiry = %d, want 1", got)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	_ = store.Put(ctx, "k", "v", time.Minute)

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want %v", err, ErrNotFound)
	}
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	_ = store.Put(ctx, "short-1", "v", time.Minute)
	_ = store.Put(ctx, "short-2", "v", time.Minute)
	_ = store.Put(ctx, "long", "v", time.Hour)

	clock.Advance(5 * time.Minute)

	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("SweepExpired() = %d, want 2", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if _, err := store.Get(ctx, "long"); err != nil {
		t.Errorf("Get(long) error = %v", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = store.Put(ctx, key, "v", time.Minute)
			_, _ = store.Get(ctx, key)
			_, _ = store.SweepExpired(ctx)
		}(i)
	}
	wg.Wait()

	if store.Len() != 26 {
		t.Errorf("Len() = %d, want 26", store.Len())
	}
}

type countingStore struct {
	*MemoryStore
	mu     sync.Mutex
	sweeps int
}

func (s *countingStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.sweeps++
	s.mu.Unlock()
	return s.MemoryStore.SweepExpired(ctx)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

func TestRunPeriodicSweep(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunPeriodicSweep(ctx, store, 5*time.Millisecond, nil)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweep did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodicSweep did not stop after cancel")
	}
}
