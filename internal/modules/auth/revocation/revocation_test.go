package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactly/core/internal/pkg/cache"
)

func TestRevokeAndCheck(t *testing.T) {
	ctx := context.Background()
	l := New(cache.NewMemory())

	require.NoError(t, l.Revoke(ctx, KindAccess, "tok-1", time.Minute))

	revoked, err := l.IsRevoked(ctx, KindAccess, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Same value under another kind is unaffected.
	revoked, err = l.IsRevoked(ctx, KindRefresh, "tok-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	l := New(store)

	require.NoError(t, l.Revoke(ctx, KindSession, "sid-1", time.Minute))

	now = now.Add(2 * time.Minute)
	revoked, err := l.IsRevoked(ctx, KindSession, "sid-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry outlives nothing once the revoked item is dead")
}

func TestRevokeDeadItemIsNoop(t *testing.T) {
	ctx := context.Background()
	l := New(cache.NewMemory())

	require.NoError(t, l.Revoke(ctx, KindAccess, "tok-1", 0))
	require.NoError(t, l.Revoke(ctx, KindAccess, "tok-2", -time.Minute))
	require.NoError(t, l.Revoke(ctx, KindAccess, "", time.Minute))

	for _, v := range []string{"tok-1", "tok-2", ""} {
		revoked, err := l.IsRevoked(ctx, KindAccess, v)
		require.NoError(t, err)
		assert.False(t, revoked)
	}
}

func TestUnrevoke(t *testing.T) {
	ctx := context.Background()
	l := New(cache.NewMemory())

	require.NoError(t, l.Revoke(ctx, RecoverStep(1), "user-1", time.Minute))
	revoked, _ := l.IsRevoked(ctx, RecoverStep(1), "user-1")
	require.True(t, revoked)

	require.NoError(t, l.Unrevoke(ctx, RecoverStep(1), "user-1"))
	revoked, _ = l.IsRevoked(ctx, RecoverStep(1), "user-1")
	assert.False(t, revoked)
}

func TestRevokeInPipe(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	l := New(store)

	err := store.Pipelined(ctx, func(p cache.Pipeliner) {
		RevokeInPipe(p, KindSession, "sid-1", time.Minute)
		RevokeInPipe(p, KindSession, "", time.Minute)
		RevokeInPipe(p, KindSession, "sid-2", 0)
	})
	require.NoError(t, err)

	revoked, _ := l.IsRevoked(ctx, KindSession, "sid-1")
	assert.True(t, revoked)
	revoked, _ = l.IsRevoked(ctx, KindSession, "sid-2")
	assert.False(t, revoked)
}
