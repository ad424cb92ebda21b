package service

import (
	"context"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/civicworks/townhall/pkg/metricsx"
)

// RevocationRegistry makes bearer tokens unusable before their natural
// expiry. Tokens are keyed by their SHA-256 fingerprint so raw credentials
// are never stored.
type RevocationRegistry struct {
	Store   store.Revocations
	Metrics *metricsx.Metrics
}

// Revoke records token as revoked until expiresAt. Revoking twice is the
// same as once.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	err := r.Store.Revoke(ctx, domain.RevocationEntry{
		ID:        cryptox.FingerprintToken(token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	r.Metrics.Revoked()
	return nil
}

func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	return r.Store.IsRevoked(ctx, cryptox.FingerprintToken(token))
}

// Reap drops entries whose token has expired anyway.
func (r *RevocationRegistry) Reap(ctx context.Context, now time.Time) (int, error) {
	n, err := r.Store.DeleteExpiredRevocations(ctx, now)
	if err != nil {
		return 0, err
	}
	r.Metrics.Reaped("revocations", n)
	return n, nil
}
