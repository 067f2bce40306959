package payment

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryDeliveryLog_RecordDelivery(t *testing.T) {
	dl := NewInMemoryDeliveryLog()
	ctx := context.Background()
	d := CallbackDelivery{TransactionID: "TXN_1", ValidationID: "VAL1", Status: "VALID"}

	if err := dl.RecordDelivery(ctx, d); err != nil {
		t.Fatalf("first RecordDelivery() error = %v", err)
	}
	if err := dl.RecordDelivery(ctx, d); !errors.Is(err, ErrDuplicateDelivery) {
		t.Errorf("second RecordDelivery() error = %v, want %v", err, ErrDuplicateDelivery)
	}

	d.Status = "CANCELLED"
	if err := dl.RecordDelivery(ctx, d); err != nil {
		t.Errorf("RecordDelivery() with new status error = %v", err)
	}
	if dl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", dl.Len())
	}
}
