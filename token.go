package skystore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenAlgorithm is the only signing algorithm the service accepts.
// Restricting to one HMAC algorithm rules out algorithm confusion attacks.
const TokenAlgorithm = "HS256"

// Token is an issued bearer token. Validity is computed from its fields,
// never looked up; there is no backing store and no revocation list.
type Token struct {
	String    string    `json:"access_token"`
	Subject   uuid.UUID `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	// Secret signs and verifies tokens. Loaded once at process start,
	// immutable for the process lifetime, never logged.
	Secret string
	// TTL is the lifetime of issued tokens.
	TTL time.Duration
	// Algorithm names the signing algorithm; only "HS256" is accepted.
	Algorithm string
}

// TokenService issues and verifies signed expiring bearer tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service from the given configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("new token service: %w: secret cannot be empty", ErrInvalidInput)
	}
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("new token service: %w: secret must be at least 32 bytes", ErrInvalidInput)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("new token service: %w: ttl must be positive", ErrInvalidInput)
	}
	if cfg.Algorithm != "" && cfg.Algorithm != TokenAlgorithm {
		return nil, fmt.Errorf("new token service: %w: unsupported algorithm %q", ErrInvalidInput, cfg.Algorithm)
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
	}, nil
}

// Issue creates a signed token for the given subject. The caller supplies
// now so issuance is deterministic and testable.
func (s *TokenService) Issue(subject uuid.UUID, now time.Time) (Token, error) {
	if subject == uuid.Nil {
		return Token{}, fmt.Errorf("issue token: %w: subject cannot be empty", ErrInvalidInput)
	}

	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}

	return Token{
		String:    signed,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks a token's signature and expiry against the caller-supplied
// now and returns the subject it was issued for. The clock is never read
// internally so verification stays deterministic.
//
// Failure kinds: ErrTokenMalformed when the string cannot be parsed into
// its fields, ErrTokenSignature when the signature does not verify, and
// ErrTokenExpired when now is past the expiry.
func (s *TokenService) Verify(tokenString string, now time.Time) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{TokenAlgorithm}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("verify token: %w", mapJWTError(err))
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.Subject == "" {
		return uuid.Nil, fmt.Errorf("verify token: missing claims: %w", ErrTokenMalformed)
	}

	if now.UTC().After(claims.ExpiresAt.Time) {
		return uuid.Nil, fmt.Errorf("verify token: %w", ErrTokenExpired)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("verify token: invalid subject: %w", ErrTokenMalformed)
	}

	return subject, nil
}

// mapJWTError translates jwt library errors to the shared taxonomy.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
