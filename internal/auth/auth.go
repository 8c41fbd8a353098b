// Package auth verifies the bearer tokens issued by the family Auth Service
// and carries the resulting principal on request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"familyboard/internal/board"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   string
	FamilyID string
}

type boardClaims struct {
	jwt.RegisteredClaims
	Family string `json:"fam"`
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier builds a verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses tokenStr and returns its principal. Every failure wraps
// board.ErrUnauthorized.
func (v *Verifier) Verify(tokenStr string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &boardClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", board.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*boardClaims)
	if !token.Valid || !ok {
		return Principal{}, fmt.Errorf("%w: invalid token claims", board.ErrUnauthorized)
	}
	if claims.Subject == "" || claims.Family == "" {
		return Principal{}, fmt.Errorf("%w: token lacks subject or family", board.ErrUnauthorized)
	}
	return Principal{UserID: claims.Subject, FamilyID: claims.Family}, nil
}

// VerifyRequest extracts and verifies the bearer token of r.
func (v *Verifier) VerifyRequest(r *http.Request) (Principal, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Principal{}, fmt.Errorf("%w: missing bearer token", board.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Principal{}, fmt.Errorf("%w: malformed authorization header", board.ErrUnauthorized)
	}
	return v.Verify(strings.TrimSpace(token))
}

// Issue mints a token for p. It exists for local development; production
// tokens come from the Auth Service.
func Issue(secret, issuer string, p Principal, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if p.UserID == "" || p.FamilyID == "" {
		return "", errors.New("user and family are required")
	}
	now := time.Now()
	claims := boardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Family: p.FamilyID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored on ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
