package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// signedFields lists the response fields covered by verify_sign, in the order
// the gateway concatenates them. The configured store id is prepended and the
// store password appended.
var signedFields = []string{
	"tran_id",
	"val_id",
	"amount",
	"currency",
	"tran_date",
	"status",
	"store_id",
	"verify_key",
}

// Verifier checks callback signatures for a single store.
type Verifier struct {
	storeID       string
	storePassword string
}

// NewVerifier creates a Verifier for the given store credentials.
func NewVerifier(storeID, storePassword string) *Verifier {
	return &Verifier{storeID: storeID, storePassword: storePassword}
}

// Verify reports whether fields carry a valid verify_sign.
func (v *Verifier) Verify(fields map[string]string) bool {
	return VerifySignature(v.storeID, v.storePassword, fields)
}

// VerifySignature recomputes the MD5 digest over the signed fields and
// compares it case-insensitively with fields["verify_sign"]. A missing
// verify_sign is rejected without hashing.
func VerifySignature(storeID, storePassword string, fields map[string]string) bool {
	received, ok := fields["verify_sign"]
	if !ok || strings.TrimSpace(received) == "" {
		return false
	}

	expected := ComputeSignature(storeID, storePassword, fields)
	got := strings.ToLower(strings.TrimSpace(received))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// ComputeSignature returns the lowercase hex digest the gateway is expected
// to send for fields.
func ComputeSignature(storeID, storePassword string, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(storeID)
	for _, name := range signedFields {
		b.WriteString(fields[name])
	}
	b.WriteString(storePassword)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
