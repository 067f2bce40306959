package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pulseiq/payments/internal/otp"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func TestConfirmations_IssueAndVerify(t *testing.T) {
	store := otp.NewMemoryStore()
	sender := &recordingSender{}
	c := NewConfirmations(store, sender, nil, WithCodeGenerator(fixedCode("042917")))
	ctx := context.Background()

	if err := c.Issue(ctx, "TXN_1_abc", "rahim@example.com", "Rahim"); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "rahim@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	for _, body := range []string{msg.Text, msg.HTML} {
		if !strings.Contains(body, "042917") || !strings.Contains(body, "TXN_1_abc") {
			t.Errorf("body missing code or transaction id: %q", body)
		}
	}

	stored, err := store.Get(ctx, "payment-confirmation:TXN_1_abc")
	if err != nil || stored != "042917" {
		t.Errorf("stored code = %q, %v, want 042917", stored, err)
	}

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"wrong code", "000000", false},
		{"correct code with whitespace", " 042917 ", true},
		{"reused code", "042917", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Verify(ctx, "TXN_1_abc", tt.code)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirmations_WrongAttemptsDiscardCode(t *testing.T) {
	tests := []struct {
		name   string
		misses int
		want   bool
	}{
		{"below limit", DefaultMaxAttempts - 1, true},
		{"at limit", DefaultMaxAttempts, false},
		{"enumeration run", 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfirmations(otp.NewMemoryStore(), &recordingSender{}, nil, WithCodeGenerator(fixedCode("504217")))
			ctx := context.Background()
			if err := c.Issue(ctx, "TXN_4_abc", "a@example.com", "A"); err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			for i := 0; i < tt.misses; i++ {
				ok, err := c.Verify(ctx, "TXN_4_abc", fmt.Sprintf("%06d", i))
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				if ok {
					t.Fatalf("Verify(%06d) = true, want false", i)
				}
			}

			got, err := c.Verify(ctx, "TXN_4_abc", "504217")
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify(correct code) after %d misses = %v, want %v", tt.misses, got, tt.want)
			}
		})
	}
}

func TestConfirmations_ReissueResetsAttempts(t *testing.T) {
	c := NewConfirmations(otp.NewMemoryStore(), &recordingSender{}, nil,
		WithCodeGenerator(fixedCode("777001")),
		WithMaxAttempts(2),
	)
	ctx := context.Background()

	if err := c.Issue(ctx, "TXN_5_abc", "a@example.com", "A"); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := c.Verify(ctx, "TXN_5_abc", "000000"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := c.Issue(ctx, "TXN_5_abc", "a@example.com", "A"); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := c.Verify(ctx, "TXN_5_abc", "000000"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	got, err := c.Verify(ctx, "TXN_5_abc", "777001")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got {
		t.Error("Verify() = false, want true: one miss per issued code is below the limit")
	}
}

func TestConfirmations_VerifyUnknownTransaction(t *testing.T) {
	c := NewConfirmations(otp.NewMemoryStore(), &recordingSender{}, nil)

	got, err := c.Verify(context.Background(), "TXN_missing", "123456")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got {
		t.Error("Verify() = true for unknown transaction")
	}
}

func TestConfirmations_ExpiredCode(t *testing.T) {
	c := NewConfirmations(otp.NewMemoryStore(), &recordingSender{}, nil,
		WithCodeGenerator(fixedCode("111111")),
		WithCodeTTL(10*time.Millisecond),
	)
	ctx := context.Background()

	if err := c.Issue(ctx, "TXN_2_abc", "a@example.com", ""); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	got, err := c.Verify(ctx, "TXN_2_abc", "111111")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got {
		t.Error("Verify() = true for expired code")
	}
}

func TestConfirmations_IssueErrors(t *testing.T) {
	sendErr := errors.New("smtp down")
	c := NewConfirmations(otp.NewMemoryStore(), &recordingSender{err: sendErr}, nil)

	if err := c.Issue(context.Background(), "", "a@example.com", "A"); err == nil {
		t.Error("Issue() with empty transaction id should fail")
	}
	if err := c.Issue(context.Background(), "TXN_3_abc", "a@example.com", "A"); !errors.Is(err, sendErr) {
		t.Errorf("Issue() error = %v, want wrapped %v", err, sendErr)
	}
}

func TestRandomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := randomCode()
		if err != nil {
			t.Fatalf("randomCode() error = %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("randomCode() = %q, want %d digits", code, CodeLength)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("randomCode() = %q contains non-digit", code)
			}
		}
	}
}
