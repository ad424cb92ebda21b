// Package storetest is a behavioural suite every store.SessionStore driver
// must pass.
package storetest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/stretchr/testify/require"
)

type Harness struct {
	Store store.SessionStore
	Clock *clockx.FakeClock

	// Advance moves time forward for both Clock and the backend.
	Advance func(d time.Duration)
}

// Run executes the suite. newHarness must return a fresh, empty store.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("revocations", func(t *testing.T) { testRevocations(t, newHarness(t)) })
	t.Run("revocations concurrent", func(t *testing.T) { testRevocationsConcurrent(t, newHarness(t)) })
	t.Run("qr lifecycle", func(t *testing.T) { testQRLifecycle(t, newHarness(t)) })
	t.Run("qr confirm race", func(t *testing.T) { testQRConfirmRace(t, newHarness(t)) })
	t.Run("qr expiry", func(t *testing.T) { testQRExpiry(t, newHarness(t)) })
	t.Run("qr reap", func(t *testing.T) { testQRReap(t, newHarness(t)) })
	t.Run("reset codes", func(t *testing.T) { testResetCodes(t, newHarness(t)) })
	t.Run("reset codes concurrent consume", func(t *testing.T) { testResetConsumeRace(t, newHarness(t)) })
	t.Run("reset codes expiry", func(t *testing.T) { testResetExpiry(t, newHarness(t)) })
}

func testRevocations(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.Revocations()
	now := h.Clock.Now()

	revoked, err := repo.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, revoked)

	short := domain.RevocationEntry{ID: "short", ExpiresAt: now.Add(time.Minute)}
	long := domain.RevocationEntry{ID: "long", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Revoke(ctx, short))
	require.NoError(t, repo.Revoke(ctx, short), "revoking twice is allowed")
	require.NoError(t, repo.Revoke(ctx, long))

	for _, id := range []string{"short", "long"} {
		revoked, err := repo.IsRevoked(ctx, id)
		require.NoError(t, err)
		require.True(t, revoked, id)
	}

	h.Advance(2 * time.Minute)
	_, err = repo.DeleteExpiredRevocations(ctx, h.Clock.Now())
	require.NoError(t, err)

	revoked, err = repo.IsRevoked(ctx, "short")
	require.NoError(t, err)
	require.False(t, revoked, "reaped once past expiry")

	revoked, err = repo.IsRevoked(ctx, "long")
	require.NoError(t, err)
	require.True(t, revoked, "unexpired entries survive the reap")
}

func testRevocationsConcurrent(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.Revocations()
	exp := h.Clock.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("tok-%d", i%5)
			_ = repo.Revoke(ctx, domain.RevocationEntry{ID: id, ExpiresAt: exp})
			_, _ = repo.IsRevoked(ctx, id)
		}()
	}
	wg.Wait()

	for i := range 5 {
		revoked, err := repo.IsRevoked(ctx, fmt.Sprintf("tok-%d", i))
		require.NoError(t, err)
		require.True(t, revoked)
	}
}

func newPending(h Harness, id string, ttl time.Duration) domain.QRSession {
	now := h.Clock.Now()
	return domain.QRSession{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		State:     domain.QRPending,
	}
}

func testQRLifecycle(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.QRSessions()
	s := newPending(h, "qr-1", 5*time.Minute)

	require.NoError(t, repo.CreateQRSession(ctx, s))
	require.ErrorIs(t, repo.CreateQRSession(ctx, s), store.ErrAlreadyExists)

	got, err := repo.GetQRSession(ctx, "qr-1")
	require.NoError(t, err)
	require.Equal(t, domain.QRPending, got.State)
	require.True(t, got.ExpiresAt.Equal(s.ExpiresAt))

	_, err = repo.ClaimQRSession(ctx, "qr-1", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotReady, "cannot claim before confirmation")

	_, err = repo.ConfirmQRSession(ctx, "missing", "alice", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotFound)

	confirmed, err := repo.ConfirmQRSession(ctx, "qr-1", "alice", h.Clock.Now())
	require.NoError(t, err)
	require.Equal(t, domain.QRConfirmed, confirmed.State)
	require.Equal(t, "alice", confirmed.BoundUser)

	_, err = repo.ConfirmQRSession(ctx, "qr-1", "mallory", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrConflict)

	got, err = repo.GetQRSession(ctx, "qr-1")
	require.NoError(t, err)
	require.Equal(t, "alice", got.BoundUser, "a rejected confirmation must not rebind")

	claimed, err := repo.ClaimQRSession(ctx, "qr-1", h.Clock.Now())
	require.NoError(t, err)
	require.Equal(t, "alice", claimed.BoundUser)

	_, err = repo.ClaimQRSession(ctx, "qr-1", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotFound, "claim removes the session")
}

func testQRConfirmRace(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.QRSessions()
	require.NoError(t, repo.CreateQRSession(ctx, newPending(h, "qr-race", 5*time.Minute)))

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			_, err := repo.ConfirmQRSession(ctx, "qr-race", user, h.Clock.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, user)
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one confirmation wins")
	require.Equal(t, n-1, conflicts)

	got, err := repo.GetQRSession(ctx, "qr-race")
	require.NoError(t, err)
	require.Equal(t, winners[0], got.BoundUser)
}

func testQRExpiry(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.QRSessions()
	s := newPending(h, "qr-exp", time.Minute)
	require.NoError(t, repo.CreateQRSession(ctx, s))

	h.Advance(time.Minute)
	_, err := repo.GetQRSession(ctx, "qr-exp")
	require.NoError(t, err, "the deadline instant itself is still valid")

	h.Advance(time.Second)
	_, err = repo.ConfirmQRSession(ctx, "qr-exp", "alice", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrExpired, "time governs, not state")

	_, err = repo.ConfirmQRSession(ctx, "qr-exp", "alice", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotFound, "expired session is removed on contact")

	c := newPending(h, "qr-exp-claim", time.Minute)
	require.NoError(t, repo.CreateQRSession(ctx, c))
	_, err = repo.ConfirmQRSession(ctx, "qr-exp-claim", "alice", h.Clock.Now())
	require.NoError(t, err)

	h.Advance(time.Minute + time.Second)
	_, err = repo.ClaimQRSession(ctx, "qr-exp-claim", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrExpired, "confirmed but unclaimed sessions still expire")
}

func testQRReap(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.QRSessions()

	require.NoError(t, repo.CreateQRSession(ctx, newPending(h, "pending-old", time.Minute)))
	require.NoError(t, repo.CreateQRSession(ctx, newPending(h, "confirmed-old", time.Minute)))
	_, err := repo.ConfirmQRSession(ctx, "confirmed-old", "alice", h.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, repo.CreateQRSession(ctx, newPending(h, "fresh", time.Hour)))

	h.Advance(10 * time.Minute)
	_, err = repo.DeleteExpiredQRSessions(ctx, h.Clock.Now())
	require.NoError(t, err)

	for _, id := range []string{"pending-old", "confirmed-old"} {
		_, err := repo.GetQRSession(ctx, id)
		require.ErrorIs(t, err, store.ErrNotFound, id)
	}
	_, err = repo.GetQRSession(ctx, "fresh")
	require.NoError(t, err)
}

func testResetCodes(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.ResetCodes()
	exp := h.Clock.Now().Add(15 * time.Minute)

	_, err := repo.GetResetCode(ctx, "a@example.org")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.PutResetCode(ctx, domain.ResetCode{Email: "a@example.org", Code: "111111", ExpiresAt: exp}))
	require.NoError(t, repo.PutResetCode(ctx, domain.ResetCode{Email: "a@example.org", Code: "222222", ExpiresAt: exp}))

	got, err := repo.GetResetCode(ctx, "a@example.org")
	require.NoError(t, err)
	require.Equal(t, "222222", got.Code, "last request wins")

	_, err = repo.ConsumeResetCode(ctx, "a@example.org", "111111", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotFound, "the replaced code is gone")

	_, err = repo.GetResetCode(ctx, "a@example.org")
	require.NoError(t, err, "a wrong code does not destroy the record")

	consumed, err := repo.ConsumeResetCode(ctx, "a@example.org", "222222", h.Clock.Now())
	require.NoError(t, err)
	require.Equal(t, "a@example.org", consumed.Email)

	_, err = repo.ConsumeResetCode(ctx, "a@example.org", "222222", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrNotFound, "codes are single use")
}

func testResetConsumeRace(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.ResetCodes()
	require.NoError(t, repo.PutResetCode(ctx, domain.ResetCode{
		Email: "race@example.org", Code: "424242", ExpiresAt: h.Clock.Now().Add(time.Hour),
	}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeResetCode(ctx, "race@example.org", "424242", h.Clock.Now()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func testResetExpiry(t *testing.T, h Harness) {
	ctx := t.Context()
	repo := h.Store.ResetCodes()
	require.NoError(t, repo.PutResetCode(ctx, domain.ResetCode{
		Email: "old@example.org", Code: "123456", ExpiresAt: h.Clock.Now().Add(time.Minute),
	}))
	require.NoError(t, repo.PutResetCode(ctx, domain.ResetCode{
		Email: "new@example.org", Code: "654321", ExpiresAt: h.Clock.Now().Add(time.Hour),
	}))

	h.Advance(time.Minute + time.Second)
	_, err := repo.ConsumeResetCode(ctx, "old@example.org", "123456", h.Clock.Now())
	require.ErrorIs(t, err, store.ErrExpired)

	h.Advance(10 * time.Minute)
	_, err = repo.DeleteExpiredResetCodes(ctx, h.Clock.Now())
	require.NoError(t, err)

	_, err = repo.GetResetCode(ctx, "old@example.org")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetResetCode(ctx, "new@example.org")
	require.NoError(t, err)
}
