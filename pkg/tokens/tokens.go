package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orgbase/orgbase/pkg/auth"
)

// Issuer is the fixed platform identifier carried in every token.
const Issuer = "orgbase.app"

// Audiences scope a token to one consumer. A verify-email token is never
// accepted as a session and vice versa.
const (
	AudienceVerifyEmail = "orgbase.app:verify-email"
	AudienceSession     = "orgbase.app:session"
)

// VerifyEmailTTL is the lifetime of magic-link tokens.
const VerifyEmailTTL = 30 * time.Minute

// Typed verification failures.
var (
	ErrExpired          = errors.New("token expired")
	ErrBadSignature     = errors.New("token signature invalid")
	ErrAudienceMismatch = errors.New("token audience mismatch")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")
)

// Claims is the token payload: registered claims plus the actor scope.
type Claims struct {
	Scope string `json:"SC"`
	jwt.RegisteredClaims
}

// Decoded is the result of a successful verification.
type Decoded struct {
	Subject string
	Scope   auth.Scope
}

// Service signs and verifies tokens with a single HS512 secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a token service. The secret must be non-empty and is
// shared by every token the process issues.
func NewService(secret []byte) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	return &Service{secret: secret, now: time.Now}, nil
}

// Issue signs a token for the subject, scoped and bound to one audience,
// expiring after ttl.
func (s *Service) Issue(subject string, scope auth.Scope, audience string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Scope: string(scope),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   subject,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and claims of a token against the expected
// audience. Claims are validated here rather than by the parser so each
// failure maps to exactly one typed error.
func (s *Service) Verify(token, expectedAudience string) (*Decoded, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrBadSignature
	}

	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(s.now()) {
		return nil, ErrExpired
	}
	if !audienceContains(claims.Audience, expectedAudience) {
		return nil, ErrAudienceMismatch
	}
	if claims.Issuer != Issuer {
		return nil, ErrIssuerMismatch
	}

	return &Decoded{Subject: claims.Subject, Scope: auth.Scope(claims.Scope)}, nil
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
