package redis

import (
	"context"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
)

type revocationsRepo struct {
	s *Store
}

// Revoke sets a marker key that Redis drops at the token's own expiry. An
// entry already past expiry is not written: the reaper would drop it at once.
func (r *revocationsRepo) Revoke(ctx context.Context, e domain.RevocationEntry) error {
	ttl := r.s.ttlUntil(e.ExpiresAt, 0)
	if ttl <= 0 {
		return nil
	}
	return r.s.client.Set(ctx, r.s.key("revoked", e.ID), e.ExpiresAt.UTC().Format(time.RFC3339), ttl).Err()
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.s.client.Exists(ctx, r.s.key("revoked", id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *revocationsRepo) DeleteExpiredRevocations(context.Context, time.Time) (int, error) {
	return 0, nil
}
