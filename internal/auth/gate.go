package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMissingToken means no usable bearer credential was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the credential failed verification or has expired.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Principal is the authenticated identity of a single request.
type Principal struct {
	SubjectID   string
	Email       string
	TokenExpiry time.Time
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Gate turns an Authorization header into a Principal.
type Gate struct {
	verifier Verifier
	now      func() time.Time
}

func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v, now: time.Now}
}

// WithClock replaces the clock used for the expiry check.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authenticate validates the raw Authorization header value. The verifier's
// own expiry handling is not trusted: expiry is checked again here.
func (g *Gate) Authenticate(ctx context.Context, rawHeader string) (*Principal, error) {
	token, ok := bearerToken(rawHeader)
	if !ok {
		return nil, ErrMissingToken
	}

	p, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if p == nil || p.SubjectID == "" {
		return nil, ErrInvalidToken
	}
	if p.TokenExpiry.IsZero() || !g.now().Before(p.TokenExpiry) {
		return nil, ErrInvalidToken
	}
	return p, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
