// Package auth holds the credential primitives: the JWT codec used for
// access/refresh tokens and the password hasher.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Claims is the full payload: {"sub", "type", "exp"}. Every other
// registered claim is left empty and therefore omitted on the wire.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"type"`
}

var signingMethods = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// TokenCodec signs and verifies tokens with one secret and one algorithm.
// It is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// CodecOption tweaks a TokenCodec at construction.
type CodecOption func(*TokenCodec)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// NewTokenCodec builds a codec for the given HMAC algorithm name (HS256,
// HS384 or HS512).
func NewTokenCodec(secret []byte, algorithm string, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a token for subject that expires ttl from now. The exp claim
// has whole-second precision, so the expiry is rounded up to the next second
// and a token stays valid for at least ttl.
func (c *TokenCodec) Issue(subject string, typ TokenType, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", common.ErrTokenMissingSubject
	}
	if !typ.valid() {
		return "", fmt.Errorf("unknown token type %q", typ)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	exp := c.now().UTC().Add(ttl)
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		exp = whole.Add(time.Second)
	}

	token := jwt.NewWithClaims(c.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Verify checks the signature and claims of tokenString and returns its
// subject. Failures are reported, in this order, as ErrInvalidToken,
// ErrTokenTypeMismatch, ErrTokenMissingExpiry, ErrTokenExpired and
// ErrTokenMissingSubject (all from package common).
func (c *TokenCodec) Verify(tokenString string, expected TokenType) (string, error) {
	claims := &Claims{}

	// Claims are checked below so that each failure keeps its own kind.
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Type != expected {
		return "", common.ErrTokenTypeMismatch
	}

	if claims.ExpiresAt == nil {
		return "", common.ErrTokenMissingExpiry
	}

	if !c.now().UTC().Before(claims.ExpiresAt.Time) {
		return "", common.ErrTokenExpired
	}

	if claims.Subject == "" {
		return "", common.ErrTokenMissingSubject
	}

	return claims.Subject, nil
}
