package memory

import (
	"context"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/cryptox"
)

type resetCodesRepo struct {
	m *shardedMap[domain.ResetCode]
}

func (r *resetCodesRepo) PutResetCode(_ context.Context, rc domain.ResetCode) error {
	r.m.put(rc.Email, rc)
	return nil
}

func (r *resetCodesRepo) GetResetCode(_ context.Context, email string) (domain.ResetCode, error) {
	rc, ok := r.m.get(email)
	if !ok {
		return domain.ResetCode{}, store.ErrNotFound
	}
	return rc, nil
}

func (r *resetCodesRepo) ConsumeResetCode(
	_ context.Context,
	email, code string,
	now time.Time,
) (domain.ResetCode, error) {
	var (
		out domain.ResetCode
		err error
	)
	r.m.update(email, func(rc domain.ResetCode, ok bool) (domain.ResetCode, op) {
		switch {
		case !ok || !cryptox.EqualStrings(rc.Code, code):
			err = store.ErrNotFound
			return rc, opKeep
		case !rc.ValidAt(now):
			err = store.ErrExpired
			return rc, opRemove
		}
		out = rc
		return rc, opRemove
	})
	return out, err
}

func (r *resetCodesRepo) DeleteExpiredResetCodes(_ context.Context, now time.Time) (int, error) {
	return r.m.deleteFunc(func(rc domain.ResetCode) bool {
		return !rc.ValidAt(now)
	}), nil
}
