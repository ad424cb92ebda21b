// Package memory keeps the session lifecycle records in process memory.
// It is the default SessionStore for single node deployments.
package memory

import (
	"context"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
)

type Store struct {
	revocations *shardedMap[domain.RevocationEntry]
	qr          *shardedMap[domain.QRSession]
	reset       *shardedMap[domain.ResetCode]
}

// NewStore returns an empty store. shards sets the lock striping per table;
// a non-positive value picks the default.
func NewStore(shards int) *Store {
	return &Store{
		revocations: newShardedMap[domain.RevocationEntry](shards),
		qr:          newShardedMap[domain.QRSession](shards),
		reset:       newShardedMap[domain.ResetCode](shards),
	}
}

func (s *Store) Revocations() store.Revocations { return &revocationsRepo{m: s.revocations} }
func (s *Store) QRSessions() store.QRSessions   { return &qrSessionsRepo{m: s.qr} }
func (s *Store) ResetCodes() store.ResetCodes   { return &resetCodesRepo{m: s.reset} }

func (s *Store) Close() error                 { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
