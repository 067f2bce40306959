package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned for addresses that cannot receive mail.
var ErrInvalidEmail = errors.New("invalid email format")

// RFC 5321 limits.
const (
	maxEmailLength  = 254
	maxLocalLength  = 64
	maxDomainLength = 255
)

// emailPattern accepts the common address forms. The confirmation mail is
// the real proof the mailbox exists.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email returns the customer address trimmed and lowercased, which is the
// form payments are stored and searched by.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case email == "":
		return "", ErrEmpty
	case len(email) > maxEmailLength:
		return "", ErrStringTooLong
	case !emailPattern.MatchString(email):
		return "", ErrInvalidEmail
	}

	local, domain, _ := strings.Cut(email, "@")
	if len(local) > maxLocalLength || len(domain) > maxDomainLength {
		return "", ErrStringTooLong
	}
	if strings.HasPrefix(domain, ".") || strings.Contains(domain, "..") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
