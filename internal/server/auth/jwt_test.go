package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("super-secret")

func newCodec(t *testing.T, opts ...CodecOption) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec(testSecret, "HS256", opts...)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	return c
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	for _, typ := range []TokenType{TokenTypeAccess, TokenTypeRefresh} {
		tok, err := c.Issue("user-123", typ, time.Hour)
		if err != nil {
			t.Fatalf("Issue(%s) error: %v", typ, err)
		}

		sub, err := c.Verify(tok, typ)
		if err != nil {
			t.Fatalf("Verify(%s) error: %v", typ, err)
		}
		if sub != "user-123" {
			t.Fatalf("subject mismatch: got %q want %q", sub, "user-123")
		}
	}
}

func TestVerify_TypeMismatch(t *testing.T) {
	t.Parallel()

	c := newCodec(t)

	access, err := c.Issue("u1", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := c.Verify(access, TokenTypeRefresh); !errors.Is(err, common.ErrTokenTypeMismatch) {
		t.Fatalf("access as refresh: expected ErrTokenTypeMismatch, got %v", err)
	}

	refresh, err := c.Issue("u1", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := c.Verify(refresh, TokenTypeAccess); !errors.Is(err, common.ErrTokenTypeMismatch) {
		t.Fatalf("refresh as access: expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newCodec(t, WithClock(fixedClock(issuedAt)))

	tok, err := issuer.Issue("u1", TokenTypeAccess, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	before := newCodec(t, WithClock(fixedClock(issuedAt.Add(29*time.Minute))))
	if _, err := before.Verify(tok, TokenTypeAccess); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	// exp itself is already expired
	atExp := newCodec(t, WithClock(fixedClock(issuedAt.Add(30*time.Minute))))
	if _, err := atExp.Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}

	later := newCodec(t, WithClock(fixedClock(issuedAt.Add(time.Hour))))
	if _, err := later.Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestIssue_SubSecondExpiryRoundsUp(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 1, 1, 12, 0, 10, 900_000_000, time.UTC)
	issuer := newCodec(t, WithClock(fixedClock(issuedAt)))

	tok, err := issuer.Issue("u1", TokenTypeAccess, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	for _, at := range []time.Duration{1200 * time.Millisecond, 1500 * time.Millisecond, 2000 * time.Millisecond} {
		c := newCodec(t, WithClock(fixedClock(issuedAt.Add(at))))
		if _, err := c.Verify(tok, TokenTypeAccess); err != nil {
			t.Fatalf("token should be valid %s after issue: %v", at, err)
		}
	}

	// exp = 12:00:13
	atExp := newCodec(t, WithClock(fixedClock(issuedAt.Add(2100*time.Millisecond))))
	if _, err := atExp.Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	other, err := NewTokenCodec([]byte("right-secret"), "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	tok, err := other.Issue("u2", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_WrongAlgorithm(t *testing.T) {
	t.Parallel()

	hs512, err := NewTokenCodec(testSecret, "HS512")
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	tok, err := hs512.Issue("u3", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512 token on HS256 codec, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := c.Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestVerify_Tampered(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	tok, err := c.Issue("u4", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	tampered := []byte(tok)
	last := len(tampered) - 2
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	if _, err := c.Verify(string(tampered), TokenTypeAccess); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func signMap(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	return tok
}

func TestVerify_MissingExpiry(t *testing.T) {
	t.Parallel()

	tok := signMap(t, jwt.MapClaims{"sub": "u5", "type": "access"})
	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenMissingExpiry) {
		t.Fatalf("expected ErrTokenMissingExpiry, got %v", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()
	tok := signMap(t, jwt.MapClaims{"type": "access", "exp": exp})
	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenMissingSubject) {
		t.Fatalf("expected ErrTokenMissingSubject, got %v", err)
	}
}

func TestVerify_MissingType(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()
	tok := signMap(t, jwt.MapClaims{"sub": "u6", "exp": exp})
	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestVerify_CheckOrder(t *testing.T) {
	t.Parallel()

	// wrong type and expired: type is reported first
	past := time.Now().Add(-time.Hour).Unix()
	tok := signMap(t, jwt.MapClaims{"sub": "u7", "type": "refresh", "exp": past})
	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}

	// expired and no subject: expiry is reported first
	tok = signMap(t, jwt.MapClaims{"type": "access", "exp": past})
	if _, err := newCodec(t).Verify(tok, TokenTypeAccess); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestIssue_Errors(t *testing.T) {
	t.Parallel()

	c := newCodec(t)

	if _, err := c.Issue("", TokenTypeAccess, time.Hour); !errors.Is(err, common.ErrTokenMissingSubject) {
		t.Fatalf("expected ErrTokenMissingSubject, got %v", err)
	}
	if _, err := c.Issue("u", TokenType("id"), time.Hour); err == nil {
		t.Fatalf("expected error for unknown token type")
	}
	if _, err := c.Issue("u", TokenTypeAccess, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestNewTokenCodec_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenCodec(nil, "HS256"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenCodec(testSecret, "RS256"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
	if _, err := NewTokenCodec(testSecret, "none"); err == nil {
		t.Fatalf("expected error for none algorithm")
	}
}
