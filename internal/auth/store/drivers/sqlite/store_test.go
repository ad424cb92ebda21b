package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func account(id, username, email string) domain.Account {
	return domain.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Roles:        []string{domain.RoleCitizen},
		Active:       true,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(t.Context()))
}

func TestAccounts(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)
	repo := s.Accounts()

	empty, err := repo.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	a := account("01JNX2Q7ZK3M0000000000000A", "alice", "alice@example.org")
	a.Roles = []string{domain.RoleCitizen, domain.RoleStaff}
	require.NoError(t, repo.CreateAccount(ctx, a))

	t.Run("lookups", func(t *testing.T) {
		byID, err := repo.GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
		require.Equal(t, []string{"citizen", "staff"}, byID.Roles)
		require.True(t, byID.Active)
		require.True(t, byID.CreatedAt.Equal(epoch))

		byName, err := repo.GetAccountByUsername(ctx, "ALICE")
		require.NoError(t, err, "usernames compare case-insensitively")
		require.Equal(t, a.ID, byName.ID)

		byEmail, err := repo.GetAccountByEmail(ctx, "alice@example.org")
		require.NoError(t, err)
		require.Equal(t, a.ID, byEmail.ID)

		_, err = repo.GetAccountByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := repo.ExistsByUsername(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.ExistsByEmail(ctx, "bob@example.org")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("duplicates", func(t *testing.T) {
		err := repo.CreateAccount(ctx, account("01JNX2Q7ZK3M0000000000000B", "alice", "other@example.org"))
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		err = repo.CreateAccount(ctx, account("01JNX2Q7ZK3M0000000000000C", "other", "Alice@Example.org"))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("password and activation", func(t *testing.T) {
		require.NoError(t, repo.UpdatePasswordHash(ctx, a.ID, "new-hash"))
		require.NoError(t, repo.SetActive(ctx, a.ID, false))

		got, err := repo.GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)
		require.False(t, got.Active)

		require.ErrorIs(t, repo.UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)
		require.ErrorIs(t, repo.SetActive(ctx, "missing", true), store.ErrNotFound)
	})

	empty, err = repo.IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestWithTx(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	t.Run("commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Accounts().CreateAccount(ctx, account("01JNX2Q7ZK3M0000000000000D", "carol", "carol@example.org"))
		})
		require.NoError(t, err)

		ok, err := s.Accounts().ExistsByUsername(ctx, "carol")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Accounts().CreateAccount(ctx, account("01JNX2Q7ZK3M0000000000000E", "dave", "dave@example.org")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		ok, err := s.Accounts().ExistsByUsername(ctx, "dave")
		require.NoError(t, err)
		require.False(t, ok)
	})
}
