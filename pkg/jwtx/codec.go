package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HS256 secret a Codec accepts, in bytes.
const MinSecretLength = 32

type CodecConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec signs and verifies HS256 bearer tokens. It holds no mutable state
// and is safe for concurrent use.
//
// Encoding is a pure function of (subject, kind, now, secret). There is no
// random jti; the signed iat_ns claim carries now to the nanosecond, so
// tokens issued at different instants never collide.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(cfg.Secret))
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrBadTTL
	}

	return &Codec{
		secret:     slices.Clone(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		// Claims are checked by Verify itself, against the caller's clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL returns the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind for subject. The registered iat and
// exp claims have second precision; iat_ns keeps the exact issue instant.
func (c *Codec) Issue(subject string, kind Kind, now time.Time) (Token, string, error) {
	if subject == "" || !kind.Valid() {
		return Token{}, "", fmt.Errorf("jwtx: cannot issue %q token for %q", kind, subject)
	}

	iat := now.UTC()
	claims := newClaims(subject, kind, c.issuer, c.audience, iat, iat.Add(c.TTL(kind)))

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Token{}, "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return claims.token(), raw, nil
}

// Verify checks raw in fail closed order: structure, then signature, then
// issuer and audience, then expiry against now. Claims of a token whose
// signature does not verify are never inspected.
func (c *Codec) Verify(raw string, now time.Time) (Token, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Token{}, ErrInvalidSig
	default:
		return Token{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.IssuedAtNanos == 0 ||
		claims.ExpiresAt == nil || !claims.Kind.Valid() {
		return Token{}, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	if claims.Issuer != c.issuer {
		return Token{}, ErrIssuer
	}
	if !slices.Contains(claims.Audience, c.audience) {
		return Token{}, ErrAudience
	}

	tok := claims.token()
	if tok.ExpiredAt(now) {
		return Token{}, ErrExpired
	}
	return tok, nil
}

// VerifyKind is Verify plus a check that the token is of the expected kind.
func (c *Codec) VerifyKind(raw string, kind Kind, now time.Time) (Token, error) {
	tok, err := c.Verify(raw, now)
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != kind {
		return Token{}, ErrWrongKind
	}
	return tok, nil
}
