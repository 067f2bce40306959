package gateway

import "strings"

// Payment method placeholders stored before the instrument is known.
const (
	MethodPending    = "Pending"
	MethodToBeChosen = "To be selected in gateway"
	MethodUnknown    = "Unknown"
	MethodCard       = "Card"
	MethodTest       = "Test Payment"
)

// maxSettledMethodLength bounds a clean method label. Longer card_type values
// are the gateway concatenating several fields together.
const maxSettledMethodLength = 20

const methodSeparator = "-"

// mobileWallets maps bank_tran_id markers to display names, in match priority.
var mobileWallets = []struct {
	marker string
	name   string
}{
	{"BKASH", "bKash"},
	{"NAGAD", "Nagad"},
	{"ROCKET", "Rocket"},
	{"UPAY", "Upay"},
}

// DetectPaymentMethod infers a human-readable payment method from a callback.
// The first rule that matches wins:
//
//  1. card_type, cut at the first "-" when it looks concatenated
//  2. a mobile wallet marker inside bank_tran_id
//  3. card_brand
//  4. card_issuer
//  5. "Card" when a val_id accompanies a VALID status
//  6. "Test Payment" for VALID or SUCCESS (sandbox)
//  7. "Unknown"
func DetectPaymentMethod(fields map[string]string) string {
	if cardType := strings.TrimSpace(fields["card_type"]); cardType != "" {
		if strings.Contains(cardType, methodSeparator) || len(cardType) > maxSettledMethodLength {
			before, _, _ := strings.Cut(cardType, methodSeparator)
			cardType = strings.TrimSpace(before)
		}
		return cardType
	}

	if bankTranID := fields["bank_tran_id"]; bankTranID != "" {
		upper := strings.ToUpper(bankTranID)
		for _, w := range mobileWallets {
			if strings.Contains(upper, w.marker) {
				return w.name
			}
		}
	}

	if brand := strings.TrimSpace(fields["card_brand"]); brand != "" {
		return brand
	}
	if issuer := strings.TrimSpace(fields["card_issuer"]); issuer != "" {
		return issuer
	}

	status := ParseStatus(fields["status"])
	if strings.TrimSpace(fields["val_id"]) != "" && status == StatusValid {
		return MethodCard
	}
	if status.IsSuccess() {
		return MethodTest
	}
	return MethodUnknown
}

// IsUnsettledMethod reports whether a stored payment method is still a
// placeholder that a later callback may overwrite.
func IsUnsettledMethod(method string) bool {
	trimmed := strings.TrimSpace(method)
	if trimmed == "" {
		return true
	}

	switch trimmed {
	case MethodPending, MethodToBeChosen, MethodUnknown:
		return true
	}

	upper := strings.ToUpper(trimmed)
	for _, w := range mobileWallets {
		if upper == w.marker {
			return true
		}
	}

	return strings.Contains(trimmed, methodSeparator) || len(trimmed) > maxSettledMethodLength
}
