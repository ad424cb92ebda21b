package jwtx_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *jwtx.Codec {
	t.Helper()
	c, err := jwtx.NewCodec(jwtx.CodecConfig{
		Secret:     testSecret,
		Issuer:     "townhall-auth",
		Audience:   "townhall-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return c
}

func TestNewCodec(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{Secret: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour})
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})

	t.Run("rejects zero ttl", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{Secret: testSecret, AccessTTL: 0, RefreshTTL: time.Hour})
		require.ErrorIs(t, err, jwtx.ErrBadTTL)
	})
}

func TestCodec_IssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 750_000_000, time.UTC)

	for _, kind := range []jwtx.Kind{jwtx.KindAccess, jwtx.KindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			issued, raw, err := c.Issue("alice", kind, now)
			require.NoError(t, err)
			require.Equal(t, "alice", issued.Subject)
			require.Equal(t, kind, issued.Kind)
			require.True(t, issued.IssuedAt.Equal(now), "issue instant keeps sub-second precision")
			require.True(t, issued.ExpiresAt.Equal(now.Add(c.TTL(kind)).Truncate(time.Second)))

			got, err := c.Verify(raw, now)
			require.NoError(t, err)
			require.Equal(t, issued, got)

			got, err = c.VerifyKind(raw, kind, now)
			require.NoError(t, err)
			require.Equal(t, "alice", got.Subject)
		})
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, a, err := c.Issue("alice", jwtx.KindAccess, now)
	require.NoError(t, err)
	_, b, err := c.Issue("alice", jwtx.KindAccess, now)
	require.NoError(t, err)
	require.Equal(t, a, b, "same subject, kind and instant encode identically")

	_, r, err := c.Issue("alice", jwtx.KindRefresh, now)
	require.NoError(t, err)
	require.NotEqual(t, a, r)
}

func TestCodec_SubSecondInstantsDiffer(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seen := map[string]bool{}
	for _, d := range []time.Duration{0, time.Nanosecond, time.Millisecond, 300 * time.Millisecond, 999 * time.Millisecond} {
		tok, raw, err := c.Issue("alice", jwtx.KindAccess, now.Add(d))
		require.NoError(t, err)
		require.False(t, seen[raw], "token issued at +%v repeats an earlier one", d)
		seen[raw] = true

		got, err := c.Verify(raw, now.Add(d))
		require.NoError(t, err)
		require.True(t, got.IssuedAt.Equal(now.Add(d)))
		require.Equal(t, tok, got)
	}
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, raw, err := c.Issue("alice", jwtx.KindAccess, now)
	require.NoError(t, err)

	_, err = c.Verify(raw, tok.ExpiresAt.Add(-time.Nanosecond))
	require.NoError(t, err, "still valid one instant before expiry")

	_, err = c.Verify(raw, tok.ExpiresAt)
	require.ErrorIs(t, err, jwtx.ErrExpired, "expired exactly at expiry")

	_, err = c.Verify(raw, tok.ExpiresAt.Add(time.Hour))
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodec_VerifyKind(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now()

	_, refresh, err := c.Issue("alice", jwtx.KindRefresh, now)
	require.NoError(t, err)

	_, err = c.VerifyKind(refresh, jwtx.KindAccess, now)
	require.ErrorIs(t, err, jwtx.ErrWrongKind)
}

func TestCodec_Rejections(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, raw, err := c.Issue("alice", jwtx.KindAccess, now)
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		for _, in := range []string{"", "not-a-token", "a.b", "a.b.c"} {
			_, err := c.Verify(in, now)
			require.ErrorIs(t, err, jwtx.ErrMalformed, "input %q", in)
		}
	})

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err := c.Verify(parts[0]+"."+parts[1]+"."+string(sig), now)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		payload := base64.RawURLEncoding.EncodeToString(
			[]byte(`{"kind":"access","iss":"townhall-auth","sub":"mallory","aud":"townhall-api","exp":9999999999,"iat":1}`),
		)
		_, err := c.Verify(parts[0]+"."+payload+"."+parts[2], now)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := jwtx.NewCodec(jwtx.CodecConfig{
			Secret:     []byte("ffffffffffffffffffffffffffffffff"),
			Issuer:     "townhall-auth",
			Audience:   "townhall-api",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		})
		require.NoError(t, err)
		_, err = other.Verify(raw, now)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("signature checked before expiry", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		_, err := c.Verify(parts[0]+"."+parts[1]+".AAAA", now.Add(24*time.Hour))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwtx.Claims{Kind: jwtx.KindAccess})
		s, err := tok.SignedString(testSecret)
		require.NoError(t, err)
		_, err = c.Verify(s, now)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("wrong issuer and audience", func(t *testing.T) {
		sign := func(iss, aud string) string {
			claims := jwtx.Claims{
				Kind:          jwtx.KindAccess,
				IssuedAtNanos: now.UnixNano(),
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    iss,
					Subject:   "alice",
					Audience:  jwt.ClaimStrings{aud},
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				},
			}
			s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
			require.NoError(t, err)
			return s
		}

		_, err := c.Verify(sign("someone-else", "townhall-api"), now)
		require.ErrorIs(t, err, jwtx.ErrIssuer)

		_, err = c.Verify(sign("townhall-auth", "another-api"), now)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("missing claims", func(t *testing.T) {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtx.Claims{Kind: jwtx.KindAccess}).SignedString(testSecret)
		require.NoError(t, err)
		_, err = c.Verify(s, now)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestCodec_IssueRejectsBadInput(t *testing.T) {
	c := newTestCodec(t)

	_, _, err := c.Issue("", jwtx.KindAccess, time.Now())
	require.Error(t, err)

	_, _, err = c.Issue("alice", jwtx.Kind("session"), time.Now())
	require.Error(t, err)
}
