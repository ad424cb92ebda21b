package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store/storetest"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		clock := clockx.Fake(epoch)
		return storetest.Harness{
			Store: NewStore(4),
			Clock: clock,
			Advance: func(d time.Duration) {
				clock.Advance(d)
			},
		}
	})
}

func TestReapCounts(t *testing.T) {
	ctx := t.Context()
	s := NewStore(0)

	for i := range 10 {
		require.NoError(t, s.Revocations().Revoke(ctx, domain.RevocationEntry{
			ID:        fmt.Sprintf("tok-%d", i),
			ExpiresAt: epoch.Add(time.Duration(i) * time.Minute),
		}))
	}

	// ExpiresAt <= now is reapable: tok-0 .. tok-5.
	n, err := s.Revocations().DeleteExpiredRevocations(ctx, epoch.Add(5*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, 4, s.revocations.len())

	n, err = s.Revocations().DeleteExpiredRevocations(ctx, epoch.Add(5*time.Minute))
	require.NoError(t, err)
	require.Zero(t, n, "reaping is idempotent")
}

// Lookups racing a sweep must see either the entry or nothing.
func TestReapConcurrentWithLookups(t *testing.T) {
	ctx := t.Context()
	s := NewStore(8)
	repo := s.Revocations()

	for i := range 1000 {
		exp := epoch.Add(time.Hour)
		if i%2 == 0 {
			exp = epoch.Add(-time.Minute)
		}
		require.NoError(t, repo.Revoke(ctx, domain.RevocationEntry{ID: fmt.Sprintf("tok-%d", i), ExpiresAt: exp}))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = repo.DeleteExpiredRevocations(ctx, epoch)
	}()

	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < 1000; i += 4 {
				revoked, err := repo.IsRevoked(ctx, fmt.Sprintf("tok-%d", i))
				if err != nil {
					t.Errorf("IsRevoked: %v", err)
					return
				}
				if i%2 == 1 && !revoked {
					t.Errorf("live entry tok-%d disappeared during reap", i)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 500, s.revocations.len())
}

func TestShardedMapUpdate(t *testing.T) {
	m := newShardedMap[int](2)

	m.update("a", func(cur int, ok bool) (int, op) {
		require.False(t, ok)
		return 1, opStore
	})
	v, ok := m.get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	m.update("a", func(cur int, ok bool) (int, op) { return cur + 1, opKeep })
	v, _ = m.get("a")
	require.Equal(t, 1, v, "keep discards the returned value")

	m.update("a", func(cur int, ok bool) (int, op) { return 0, opRemove })
	_, ok = m.get("a")
	require.False(t, ok)

	require.True(t, m.putIfAbsent("b", 2))
	require.False(t, m.putIfAbsent("b", 3))
}
