package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/jwtx"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"
)

// TokenService issues and exchanges access/refresh pairs. Refresh tokens
// are not rotated: exchanging one leaves it valid until it expires or is
// revoked at sign-out.
type TokenService struct {
	Codec       *jwtx.Codec
	Revocations *RevocationRegistry
	Clock       clockx.Clock
	Metrics     *metricsx.Metrics

	mu         sync.Mutex
	lastIssued time.Time
}

func (s *TokenService) now() time.Time {
	return clockOrReal(s.Clock).Now()
}

// IssuePair mints an access and a refresh token for subject against the
// same instant.
func (s *TokenService) IssuePair(ctx context.Context, subject string) (domain.TokenPair, error) {
	return s.issuePair(subject, s.now())
}

// issueInstant returns now, or one nanosecond past the previous issue when
// the clock has not moved on. No two pairs from one service share an instant.
func (s *TokenService) issueInstant(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !now.After(s.lastIssued) {
		now = s.lastIssued.Add(time.Nanosecond)
	}
	s.lastIssued = now
	return now
}

func (s *TokenService) issuePair(subject string, now time.Time) (domain.TokenPair, error) {
	now = s.issueInstant(now)
	access, accessRaw, err := s.Codec.Issue(subject, jwtx.KindAccess, now)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshRaw, err := s.Codec.Issue(subject, jwtx.KindRefresh, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Metrics.TokenIssued(string(jwtx.KindAccess))
	s.Metrics.TokenIssued(string(jwtx.KindRefresh))

	return domain.TokenPair{
		AccessToken:      accessRaw,
		RefreshToken:     refreshRaw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new pair bound
// to the same subject. Every rejection is reported as
// ErrInvalidRefreshToken; the specific reason is only logged.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	tok, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh, now)
	if err != nil {
		l.Info("refresh token rejected", slog.Any("reason", err))
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	revoked, err := s.Revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if revoked {
		l.Info("refresh token rejected", slog.Any("reason", ErrRevoked), slog.String("sub", tok.Subject))
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	return s.issuePair(tok.Subject, now)
}

// Authenticate admits an access token: signature, issuer, audience, expiry
// and kind must check out and the token must not be revoked. The returned
// error names the failed check for logging only.
func (s *TokenService) Authenticate(ctx context.Context, raw string) (jwtx.Token, error) {
	tok, err := s.Codec.VerifyKind(raw, jwtx.KindAccess, s.now())
	if err != nil {
		return jwtx.Token{}, err
	}

	revoked, err := s.Revocations.IsRevoked(ctx, raw)
	if err != nil {
		return jwtx.Token{}, err
	}
	if revoked {
		return jwtx.Token{}, ErrRevoked
	}
	return tok, nil
}

// RevokePair revokes an access token and the refresh token issued alongside
// it. Either may be empty, so a client whose access token has lapsed can
// still revoke its refresh token. When both are valid they must belong to the
// same subject. Already expired tokens need no entry and are skipped.
func (s *TokenService) RevokePair(ctx context.Context, accessToken, refreshToken string) error {
	l := slogx.FromContext(ctx)
	now := s.now()

	if accessToken == "" && refreshToken == "" {
		return ErrUnauthorized
	}

	var access, refresh *jwtx.Token
	if accessToken != "" {
		tok, err := s.Codec.VerifyKind(accessToken, jwtx.KindAccess, now)
		switch {
		case errors.Is(err, jwtx.ErrExpired):
		case err != nil:
			l.Info("sign-out access token rejected", slog.Any("reason", err))
			return ErrUnauthorized
		default:
			access = &tok
		}
	}

	if refreshToken != "" {
		tok, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh, now)
		switch {
		case errors.Is(err, jwtx.ErrExpired):
		case err != nil:
			l.Info("sign-out refresh token rejected", slog.Any("reason", err))
			return ErrInvalidRefreshToken
		case access != nil && tok.Subject != access.Subject:
			l.Warn("sign-out refresh token belongs to another subject", slog.String("sub", access.Subject))
			return ErrInvalidRefreshToken
		default:
			refresh = &tok
		}
	}

	if access != nil {
		if err := s.Revocations.Revoke(ctx, accessToken, access.ExpiresAt); err != nil {
			return err
		}
	}
	if refresh != nil {
		if err := s.Revocations.Revoke(ctx, refreshToken, refresh.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}
