package memory

import (
	"context"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
)

type qrSessionsRepo struct {
	m *shardedMap[domain.QRSession]
}

func (r *qrSessionsRepo) CreateQRSession(_ context.Context, s domain.QRSession) error {
	if !r.m.putIfAbsent(s.ID, s) {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *qrSessionsRepo) GetQRSession(_ context.Context, id string) (domain.QRSession, error) {
	s, ok := r.m.get(id)
	if !ok {
		return domain.QRSession{}, store.ErrNotFound
	}
	return s, nil
}

func (r *qrSessionsRepo) ConfirmQRSession(
	_ context.Context,
	id, userID string,
	now time.Time,
) (domain.QRSession, error) {
	var (
		out domain.QRSession
		err error
	)
	r.m.update(id, func(s domain.QRSession, ok bool) (domain.QRSession, op) {
		switch {
		case !ok:
			err = store.ErrNotFound
			return s, opKeep
		case s.State != domain.QRPending:
			err = store.ErrConflict
			return s, opKeep
		case s.ExpiredAt(now):
			err = store.ErrExpired
			return s, opRemove
		}
		s.State = domain.QRConfirmed
		s.BoundUser = userID
		out = s
		return s, opStore
	})
	return out, err
}

func (r *qrSessionsRepo) ClaimQRSession(_ context.Context, id string, now time.Time) (domain.QRSession, error) {
	var (
		out domain.QRSession
		err error
	)
	r.m.update(id, func(s domain.QRSession, ok bool) (domain.QRSession, op) {
		switch {
		case !ok:
			err = store.ErrNotFound
			return s, opKeep
		case s.ExpiredAt(now):
			err = store.ErrExpired
			return s, opRemove
		case s.State != domain.QRConfirmed:
			err = store.ErrNotReady
			return s, opKeep
		}
		out = s
		return s, opRemove
	})
	return out, err
}

func (r *qrSessionsRepo) DeleteExpiredQRSessions(_ context.Context, now time.Time) (int, error) {
	return r.m.deleteFunc(func(s domain.QRSession) bool {
		return s.ExpiredAt(now)
	}), nil
}
