package gateway

import (
	"strings"
	"testing"
)

const (
	testStoreID       = "pulse0001"
	testStorePassword = "pulse0001@ssl"
)

// signedCallback returns a callback whose verify_sign was produced by the
// gateway for testStoreID/testStorePassword.
func signedCallback() map[string]string {
	return map[string]string{
		"tran_id":     "TXN_1_abc",
		"val_id":      "VAL1",
		"amount":      "100.00",
		"currency":    "BDT",
		"tran_date":   "2024-01-01 10:00:00",
		"status":      "VALID",
		"store_id":    "pulse0001",
		"verify_key":  "key1",
		"verify_sign": "46c83e43c4ec93533c61f1881de2e539",
	}
}

func TestVerifySignature_KnownVector(t *testing.T) {
	fields := signedCallback()
	if !VerifySignature(testStoreID, testStorePassword, fields) {
		t.Errorf("VerifySignature() = false, want true for known vector (computed %s)",
			ComputeSignature(testStoreID, testStorePassword, fields))
	}
}

func TestVerifySignature_CaseInsensitive(t *testing.T) {
	fields := signedCallback()
	fields["verify_sign"] = strings.ToUpper(fields["verify_sign"])
	if !VerifySignature(testStoreID, testStorePassword, fields) {
		t.Error("VerifySignature() = false, want true for uppercase digest")
	}
}

func TestVerifySignature_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		secret string
	}{
		{
			name:   "missing verify_sign",
			mutate: func(f map[string]string) { delete(f, "verify_sign") },
			secret: testStorePassword,
		},
		{
			name:   "blank verify_sign",
			mutate: func(f map[string]string) { f["verify_sign"] = "  " },
			secret: testStorePassword,
		},
		{
			name:   "tampered amount",
			mutate: func(f map[string]string) { f["amount"] = "1.00" },
			secret: testStorePassword,
		},
		{
			name:   "tampered status",
			mutate: func(f map[string]string) { f["status"] = "FAILED" },
			secret: testStorePassword,
		},
		{
			name:   "wrong secret",
			mutate: func(map[string]string) {},
			secret: "not-the-password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := signedCallback()
			tt.mutate(fields)
			if VerifySignature(testStoreID, tt.secret, fields) {
				t.Error("VerifySignature() = true, want false")
			}
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testStoreID, testStorePassword)
	if !v.Verify(signedCallback()) {
		t.Error("Verifier.Verify() = false, want true")
	}
	if NewVerifier("other-store", testStorePassword).Verify(signedCallback()) {
		t.Error("Verifier.Verify() = true for a different store id, want false")
	}
}

func TestComputeSignature_FieldOrder(t *testing.T) {
	a := map[string]string{"tran_id": "x", "val_id": "y"}
	b := map[string]string{"tran_id": "y", "val_id": "x"}
	if ComputeSignature(testStoreID, testStorePassword, a) == ComputeSignature(testStoreID, testStorePassword, b) {
		t.Error("ComputeSignature() should depend on field order")
	}
}
