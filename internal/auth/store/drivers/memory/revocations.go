package memory

import (
	"context"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
)

type revocationsRepo struct {
	m *shardedMap[domain.RevocationEntry]
}

func (r *revocationsRepo) Revoke(_ context.Context, e domain.RevocationEntry) error {
	r.m.put(e.ID, e)
	return nil
}

func (r *revocationsRepo) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := r.m.get(id)
	return ok, nil
}

func (r *revocationsRepo) DeleteExpiredRevocations(_ context.Context, now time.Time) (int, error) {
	return r.m.deleteFunc(func(e domain.RevocationEntry) bool {
		return e.ReapableAt(now)
	}), nil
}
