package payment

import (
	"errors"
	"fmt"
)

// Persistence errors.
var (
	ErrRecordNotFound       = errors.New("payment record not found")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	ErrDuplicateDelivery    = errors.New("callback delivery already recorded")
)

// Kind classifies a payment failure so callers can branch without parsing
// messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindNetwork
	KindGatewayRejection
	KindParseFailure
	KindNotFound
	KindSignatureMismatch
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	case KindGatewayRejection:
		return "gateway_rejection"
	case KindParseFailure:
		return "parse_failure"
	case KindNotFound:
		return "not_found"
	case KindSignatureMismatch:
		return "signature_mismatch"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is a classified payment failure.
type Error struct {
	Kind          Kind
	Op            string
	TransactionID string
	Message       string
	Err           error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.TransactionID != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.TransactionID, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
