package payment

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

const transactionIDPrefix = "TXN_"

// NewTransactionID returns "TXN_<unix millis>_<8 hex chars>". The random
// suffix keeps IDs minted in the same millisecond distinct without any
// shared counter.
func NewTransactionID() string {
	return newTransactionID(time.Now())
}

func newTransactionID(now time.Time) string {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic("payment: crypto/rand unavailable: " + err.Error())
	}
	return transactionIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + hex.EncodeToString(suffix[:])
}
