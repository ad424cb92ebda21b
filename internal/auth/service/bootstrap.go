package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/idx"
	"github.com/civicworks/townhall/pkg/slogx"
)

type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

type BootstrapService struct {
	Store  store.Store
	Hasher PasswordHasher
	Clock  clockx.Clock
}

// EnsureAdmin creates the first administrator when the account table is
// empty. It reports whether an account was created.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Accounts().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		l.Debug("accounts present, skipping admin bootstrap")
		return false, nil
	}

	email := NormalizeEmail(admin.Email)
	if strings.TrimSpace(admin.Username) == "" || !validEmail(email) {
		return false, ErrInvalidRequest
	}
	if err := checkPassword(admin.Password); err != nil {
		return false, err
	}

	hash, err := s.Hasher.Hash(admin.Password)
	if err != nil {
		return false, err
	}

	now := clockOrReal(s.Clock).Now().UTC()
	acct := domain.Account{
		ID:           idx.NewAt(now).String(),
		Username:     strings.TrimSpace(admin.Username),
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleAdmin, domain.RoleCitizen},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := false
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Accounts().IsEmpty(ctx)
		if err != nil || !empty {
			return err
		}
		if err := tx.Accounts().CreateAccount(ctx, acct); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		l.Info("bootstrapped admin account",
			slog.String("account_id", acct.ID),
			slog.String("username", acct.Username),
		)
	}
	return created, nil
}
