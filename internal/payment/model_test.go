package payment

import "testing"

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},
		{StatusProcessing, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusCompleted || s == StatusFailed || s == StatusCancelled
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestParseRecordStatus(t *testing.T) {
	if s, ok := ParseRecordStatus("COMPLETED"); !ok || s != StatusCompleted {
		t.Errorf("ParseRecordStatus(COMPLETED) = %v, %v", s, ok)
	}
	if _, ok := ParseRecordStatus("completed"); ok {
		t.Error("ParseRecordStatus(completed) ok = true, want false")
	}
}

func TestError_KindOf(t *testing.T) {
	err := &Error{Kind: KindNotFound, Op: "validate_callback", TransactionID: "TXN_1", Message: "payment not found", Err: ErrRecordNotFound}

	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindNotFound)
	}
	if got := err.Error(); got != "validate_callback TXN_1: not_found: payment not found" {
		t.Errorf("Error() = %q", got)
	}
	if KindOf(ErrRecordNotFound) != KindUnknown {
		t.Error("KindOf(plain error) should be KindUnknown")
	}
}
