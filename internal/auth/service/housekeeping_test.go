package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicworks/townhall/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type reaperFunc func(ctx context.Context, now time.Time) (int, error)

func (f reaperFunc) Reap(ctx context.Context, now time.Time) (int, error) { return f(ctx, now) }

func TestHousekeepingSweep(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	pair, err := e.tokens.IssuePair(t.Context(), "acct-1")
	require.NoError(t, err)
	require.NoError(t, e.tokens.RevokePair(t.Context(), pair.AccessToken, pair.RefreshToken))
	_, err = e.qr.Create(t.Context())
	require.NoError(t, err)

	hk := NewHousekeepingService(map[string]Reaper{
		"revocations": e.revocations,
		"qr_sessions": e.qr,
		"reset_codes": e.reset,
		"broken": reaperFunc(func(context.Context, time.Time) (int, error) {
			return 0, errors.New("unavailable")
		}),
	}, slogx.Discard(), e.clock, time.Hour)

	require.Equal(t, 0, hk.Sweep(t.Context()), "nothing has expired yet")

	e.clock.Advance(time.Hour)
	require.Equal(t, 2, hk.Sweep(t.Context()), "access revocation and the QR session")

	e.clock.Advance(7 * 24 * time.Hour)
	require.Equal(t, 1, hk.Sweep(t.Context()), "refresh revocation")
}

func TestHousekeepingLoop(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	sweeps := make(chan int, 4)

	hk := NewHousekeepingService(map[string]Reaper{"qr_sessions": e.qr}, slogx.Discard(), e.clock, time.Minute)
	hk.onSweep = func(n int) { sweeps <- n }

	hk.Start()
	defer hk.Stop()

	wait := func() int {
		select {
		case n := <-sweeps:
			return n
		case <-time.After(5 * time.Second):
			t.Fatal("sweep did not run")
			return 0
		}
	}

	require.Equal(t, 0, wait(), "initial sweep on start")

	_, err := e.qr.Create(t.Context())
	require.NoError(t, err)
	e.clock.Advance(6 * time.Minute)
	require.Equal(t, 1, wait())
}
