package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestLoginLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s := New(addr, "", 0)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	lim := s.LoginLimiter(2, time.Minute)
	email := "limiter-test@example.com"
	require.NoError(t, lim.Reset(ctx, email))

	blocked, err := lim.Blocked(ctx, email)
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, lim.RecordFailure(ctx, email))
	require.NoError(t, lim.RecordFailure(ctx, email))
	blocked, err = lim.Blocked(ctx, email)
	require.NoError(t, err)
	require.True(t, blocked)

	ttl, err := s.rdb.TTL(ctx, loginFailKey(email)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, lim.Reset(ctx, email))
	blocked, err = lim.Blocked(ctx, email)
	require.NoError(t, err)
	require.False(t, blocked)
}
