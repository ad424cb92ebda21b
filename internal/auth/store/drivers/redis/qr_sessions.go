package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type qrSessionsRepo struct {
	s *Store
}

type qrRecord struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	State     domain.QRState `json:"state"`
	BoundUser string         `json:"bound_user,omitempty"`
}

func toQRRecord(s domain.QRSession) qrRecord {
	return qrRecord(s)
}

func (r qrRecord) session() domain.QRSession {
	return domain.QRSession(r)
}

func (r *qrSessionsRepo) CreateQRSession(ctx context.Context, s domain.QRSession) error {
	raw, err := json.Marshal(toQRRecord(s))
	if err != nil {
		return err
	}
	ok, err := r.s.client.SetNX(ctx, r.s.key("qr", s.ID), raw, r.s.ttlUntil(s.ExpiresAt, r.s.grace)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *qrSessionsRepo) GetQRSession(ctx context.Context, id string) (domain.QRSession, error) {
	rec, err := getJSON[qrRecord](ctx, r.s.client, r.s.key("qr", id))
	if err != nil {
		return domain.QRSession{}, err
	}
	return rec.session(), nil
}

func (r *qrSessionsRepo) ConfirmQRSession(
	ctx context.Context,
	id, userID string,
	now time.Time,
) (domain.QRSession, error) {
	key := r.s.key("qr", id)
	var out domain.QRSession

	err := r.s.watch(ctx, key, func(tx *redis.Tx) error {
		rec, err := getJSON[qrRecord](ctx, tx, key)
		if err != nil {
			return err
		}
		sess := rec.session()

		if sess.State != domain.QRPending {
			return store.ErrConflict
		}
		if sess.ExpiredAt(now) {
			if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, key)
				return nil
			}); err != nil {
				return err
			}
			return store.ErrExpired
		}

		sess.State = domain.QRConfirmed
		sess.BoundUser = userID
		raw, err := json.Marshal(toQRRecord(sess))
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.SetArgs(ctx, key, raw, redis.SetArgs{KeepTTL: true})
			return nil
		}); err != nil {
			return err
		}
		out = sess
		return nil
	})
	return out, err
}

func (r *qrSessionsRepo) ClaimQRSession(ctx context.Context, id string, now time.Time) (domain.QRSession, error) {
	key := r.s.key("qr", id)
	var out domain.QRSession

	err := r.s.watch(ctx, key, func(tx *redis.Tx) error {
		rec, err := getJSON[qrRecord](ctx, tx, key)
		if err != nil {
			return err
		}
		sess := rec.session()

		expired := sess.ExpiredAt(now)
		if !expired && sess.State != domain.QRConfirmed {
			return store.ErrNotReady
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		}); err != nil {
			return err
		}
		if expired {
			return store.ErrExpired
		}
		out = sess
		return nil
	})
	return out, err
}

// DeleteExpiredQRSessions is a no-op: keys expire on their own once the
// grace period after the deadline has passed.
func (r *qrSessionsRepo) DeleteExpiredQRSessions(context.Context, time.Time) (int, error) {
	return 0, nil
}
