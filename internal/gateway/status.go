package gateway

import "strings"

// Status is the transaction status reported by the gateway, decoded once
// at the response boundary.
type Status int

const (
	// StatusUnrecognized covers empty and unknown status strings.
	StatusUnrecognized Status = iota
	StatusValid
	StatusSuccess
	StatusFailed
	StatusCancelled
)

// ParseStatus decodes a raw gateway status. Matching is case-insensitive and
// accepts the short aliases FAIL and CANCEL.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "VALID":
		return StatusValid
	case "SUCCESS":
		return StatusSuccess
	case "FAILED", "FAIL":
		return StatusFailed
	case "CANCELLED", "CANCEL":
		return StatusCancelled
	default:
		return StatusUnrecognized
	}
}

// IsSuccess reports whether the gateway accepted the transaction.
func (s Status) IsSuccess() bool {
	return s == StatusValid || s == StatusSuccess
}

// String returns the canonical gateway spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNRECOGNIZED"
	}
}
