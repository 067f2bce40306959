// Package auth issues and validates the bearer tokens that protect the
// payment admin endpoints.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAdmin is the typ claim of admin tokens.
const TokenTypeAdmin = "admin"

// Issuer is the iss claim set on every token.
const Issuer = "pulseiq-payments"

// DefaultAdminTokenExpiry is used when IssueAdminToken gets a zero ttl.
const DefaultAdminTokenExpiry = 12 * time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptySubject is returned when issuing a token without a subject.
	ErrEmptySubject = errors.New("subject cannot be empty")

	// ErrMissingSecret is returned when the service has no signing secret.
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims represents the JWT claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// TokenService signs and validates HS256 admin tokens.
// Tokens are always signed with the current secret and validated against the
// current secret and then the previous one, so secrets can be rotated
// without invalidating tokens in flight.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewTokenService creates a TokenService. previousSecret may be empty.
func NewTokenService(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of s using leeway for time based claims.
func (s *TokenService) WithLeeway(leeway time.Duration) *TokenService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// IssueAdminToken signs a token for subject valid for ttl.
func (s *TokenService) IssueAdminToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if len(s.currentSecret) == 0 {
		return "", ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultAdminTokenExpiry
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: TokenTypeAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateAdminToken parses tokenString and returns its claims when it is a
// valid, unexpired admin token signed with the current or previous secret.
func (s *TokenService) ValidateAdminToken(tokenString string) (*Claims, error) {
	if len(s.currentSecret) == 0 {
		return nil, ErrMissingSecret
	}

	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Type != TokenTypeAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
