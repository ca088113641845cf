package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type stubVerifier struct {
	principal *Principal
	err       error
	calls     int
}

func (s *stubVerifier) Verify(context.Context, string) (*Principal, error) {
	s.calls++
	return s.principal, s.err
}

func TestAuthenticateMissingOrMalformedHeader(t *testing.T) {
	headers := []string{"", "Bearer", "Bearer ", "Token abc", "Basic dXNlcjpwYXNz", "abc", "Bearer a b"}
	for _, h := range headers {
		v := &stubVerifier{principal: &Principal{SubjectID: "u", TokenExpiry: time.Now().Add(time.Hour)}}
		_, err := NewGate(v).Authenticate(context.Background(), h)
		if !errors.Is(err, ErrMissingToken) {
			t.Fatalf("header %q: expected ErrMissingToken, got %v", h, err)
		}
		if v.calls != 0 {
			t.Fatalf("header %q: verifier must not be called", h)
		}
	}
}

func TestAuthenticateAcceptsCaseInsensitiveScheme(t *testing.T) {
	v := &stubVerifier{principal: &Principal{SubjectID: "u1", TokenExpiry: time.Now().Add(time.Hour)}}
	p, err := NewGate(v).Authenticate(context.Background(), "bearer tok")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if p.SubjectID != "u1" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestAuthenticateVerifierFailure(t *testing.T) {
	v := &stubVerifier{err: errors.New("signature mismatch")}
	_, err := NewGate(v).Authenticate(context.Background(), "Bearer tok")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRechecksExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v := &stubVerifier{principal: &Principal{SubjectID: "u1", TokenExpiry: now.Add(-time.Second)}}
	gate := NewGate(v).WithClock(func() time.Time { return now })

	_, err := gate.Authenticate(context.Background(), "Bearer tok")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired principal, got %v", err)
	}

	v.principal.TokenExpiry = now
	if _, err := gate.Authenticate(context.Background(), "Bearer tok"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expiry equal to now must be rejected, got %v", err)
	}
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret-test-secret-test-secret")
	token, err := v.GenerateJWT("user-1", "a@b.cl", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT error: %v", err)
	}

	p, err := NewGate(v).Authenticate(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if p.SubjectID != "user-1" || p.Email != "a@b.cl" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestJWTVerifierRejectsExpiredAndForeignTokens(t *testing.T) {
	v := NewJWTVerifier("test-secret-test-secret-test-secret")
	expired, err := v.GenerateJWT("user-1", "", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT error: %v", err)
	}
	if _, err := NewGate(v).Authenticate(context.Background(), "Bearer "+expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	other := NewJWTVerifier("another-secret-another-secret-xx")
	foreign, _ := other.GenerateJWT("user-1", "", time.Hour)
	if _, err := NewGate(v).Authenticate(context.Background(), "Bearer "+foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := NewGate(v).Authenticate(context.Background(), "Bearer "+unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatalf("expected no principal")
	}
	ctx := WithPrincipal(context.Background(), &Principal{SubjectID: "x"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.SubjectID != "x" {
		t.Fatalf("principal not stored")
	}
}
