// Package redis shares the session lifecycle records between nodes through
// Redis. Expiry is delegated to key TTLs, so the housekeeping sweeps are
// no-ops for this driver.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "townhall:auth"

	// DefaultGrace keeps QR sessions and reset codes alive past their
	// deadline so late callers get "expired" rather than "not found".
	DefaultGrace = time.Minute

	maxTxRetries = 16
)

type Options struct {
	Prefix string
	Grace  time.Duration
	Clock  clockx.Clock
}

type Store struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
	clock  clockx.Clock
}

func NewStore(client redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Clock == nil {
		opts.Clock = clockx.Real()
	}
	return &Store{
		client: client,
		prefix: opts.Prefix,
		grace:  opts.Grace,
		clock:  opts.Clock,
	}
}

func (s *Store) Revocations() store.Revocations { return &revocationsRepo{s: s} }
func (s *Store) QRSessions() store.QRSessions   { return &qrSessionsRepo{s: s} }
func (s *Store) ResetCodes() store.ResetCodes   { return &resetCodesRepo{s: s} }

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, id)
}

// ttlUntil is the key lifetime for a record expiring at exp, plus extra.
func (s *Store) ttlUntil(exp time.Time, extra time.Duration) time.Duration {
	return exp.Sub(s.clock.Now()) + extra
}

// hashKey keeps raw emails out of key names.
func hashKey(v string) string {
	return cryptox.FingerprintToken(v)
}

// watch runs fn in an optimistic WATCH transaction on key, retrying when a
// concurrent writer invalidates it. Errors returned by fn end the loop.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis: %s: too much contention", key)
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (T, error) {
	var v T
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, store.ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return v, nil
}
