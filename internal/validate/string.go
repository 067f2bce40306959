// Package validate normalizes and checks customer input before it reaches the
// payment gateway.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrInvalidCurrency   = errors.New("currency must be a 3 letter code")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

var (
	namePattern     = regexp.MustCompile(`^[\p{L}\p{M} .'\-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Rune count, not bytes: customer names are frequently non-Latin
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// CustomerName validates the name sent to the gateway as cus_name:
// - 1-100 characters
// - Letters (any script), spaces, period, apostrophe and dash only
func CustomerName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      100,
		AllowedPattern: namePattern,
		TrimSpace:      true,
	})
}

// Phone validates a customer phone number. Spaces and dashes are stripped
// from the returned value.
func Phone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmpty
	}
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return strings.NewReplacer(" ", "", "-", "").Replace(phone), nil
}

// Address validates an optional postal address of at most 255 characters.
func Address(address string) (string, error) {
	return String(address, StringConstraints{
		MaxLength:  255,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Description validates a description field:
// - Optional (can be empty)
// - Max 500 characters
func Description(desc string) (string, error) {
	return String(desc, StringConstraints{
		MaxLength:  500,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Currency upper-cases a currency code and checks it is three letters.
// An empty code is returned unchanged so callers can apply their default.
func Currency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	if !currencyPattern.MatchString(code) {
		return "", ErrInvalidCurrency
	}
	return code, nil
}
