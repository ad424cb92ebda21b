package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Services override them through configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrAudience   = errors.New("jwtx: audience mismatch")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrWrongKind  = errors.New("jwtx: unexpected token kind")
	ErrWeakSecret = errors.New("jwtx: signing secret too short")
	ErrBadTTL     = errors.New("jwtx: token lifetimes must be positive")
)

// Kind separates short lived access tokens from refresh tokens. A refresh
// token is never accepted where an access token is expected, and vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims is the signed payload.
type Claims struct {
	Kind Kind `json:"kind"`

	// IssuedAtNanos is the issue instant in Unix nanoseconds.
	IssuedAtNanos int64 `json:"iat_ns"`

	jwt.RegisteredClaims
}

// Token is the verified, decoded view of a bearer token. It is immutable.
type Token struct {
	Subject   string
	Kind      Kind
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the token is no longer valid at now. A token is
// expired from the exact instant of its expiry onwards.
func (t Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func newClaims(subject string, kind Kind, issuer, audience string, iat, exp time.Time) Claims {
	return Claims{
		Kind:          kind,
		IssuedAtNanos: iat.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func (c Claims) token() Token {
	var aud string
	if len(c.Audience) > 0 {
		aud = c.Audience[0]
	}
	return Token{
		Subject:   c.Subject,
		Kind:      c.Kind,
		Issuer:    c.Issuer,
		Audience:  aud,
		IssuedAt:  time.Unix(0, c.IssuedAtNanos).UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
	}
}
