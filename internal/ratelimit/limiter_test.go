package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, at time.Time) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewLimiter(client)
	l.now = func() time.Time { return at }
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	l := newTestLimiter(t, base)
	q := Quota{Event: "record.self_claim", Key: "fp-1", Limit: 3, Window: 15 * time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(context.Background(), q)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, int64(3-i-1), d.Remaining)
	}

	d, err := l.Allow(context.Background(), q)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllowDistinctKeysDoNotInterfere(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := newTestLimiter(t, base)

	a := Quota{Event: "invite.issue", Key: "7", Limit: 1, Window: time.Hour}
	b := Quota{Event: "invite.issue", Key: "8", Limit: 1, Window: time.Hour}

	d, err := l.Allow(context.Background(), a)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(context.Background(), a)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = l.Allow(context.Background(), b)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestAllowResetsAfterWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	l := newTestLimiter(t, base)
	q := Quota{Event: "record.self_claim", Key: "fp-2", Limit: 1, Window: 15 * time.Minute}

	d, err := l.Allow(context.Background(), q)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(context.Background(), q)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	// Retry points at the start of the next window.
	require.Equal(t, 13*time.Minute, d.RetryAfter)

	// Next fixed window: a fresh bucket key, so the attempt passes.
	l.now = func() time.Time { return base.Add(15 * time.Minute) }
	d, err = l.Allow(context.Background(), q)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestAllowZeroQuotaIsUnlimited(t *testing.T) {
	l := newTestLimiter(t, time.Now())
	d, err := l.Allow(context.Background(), Quota{Event: "x", Key: "y"})
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
