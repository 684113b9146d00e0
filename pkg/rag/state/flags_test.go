package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"rag-agent-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFlagStore(t *testing.T) (*miniredis.Miniredis, *FlagStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewFlagStore(client, 600*time.Second, 300*time.Second, logger.NewNopLogger())
	return mr, store
}

func TestAcquireGuardExactlyOnce(t *testing.T) {
	_, store := setupFlagStore(t)
	ctx := context.Background()

	require.NoError(t, store.AcquireGuard(ctx, "s1"))
	assert.ErrorIs(t, store.AcquireGuard(ctx, "s1"), ErrAlreadyGenerating)

	// A different session is unaffected
	assert.NoError(t, store.AcquireGuard(ctx, "s2"))
}

func TestAcquireGuardConcurrent(t *testing.T) {
	_, store := setupFlagStore(t)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.AcquireGuard(ctx, "s1") == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestReleaseGuardAllowsReacquire(t *testing.T) {
	_, store := setupFlagStore(t)
	ctx := context.Background()

	require.NoError(t, store.AcquireGuard(ctx, "s1"))
	store.ReleaseGuard(ctx, "s1")
	assert.NoError(t, store.AcquireGuard(ctx, "s1"))
}

func TestGuardExpires(t *testing.T) {
	mr, store := setupFlagStore(t)
	ctx := context.Background()

	require.NoError(t, store.AcquireGuard(ctx, "s1"))
	mr.FastForward(601 * time.Second)
	assert.NoError(t, store.AcquireGuard(ctx, "s1"))
}

func TestStopFlagLifecycle(t *testing.T) {
	_, store := setupFlagStore(t)
	ctx := context.Background()

	assert.False(t, store.StopRequested(ctx, "s1"))

	require.NoError(t, store.SetStop(ctx, "s1"))
	assert.True(t, store.StopRequested(ctx, "s1"))
	assert.False(t, store.StopRequested(ctx, "s2"))

	store.ClearStop(ctx, "s1")
	assert.False(t, store.StopRequested(ctx, "s1"))
}

func TestStopFlagExpires(t *testing.T) {
	mr, store := setupFlagStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetStop(ctx, "s1"))
	mr.FastForward(301 * time.Second)
	assert.False(t, store.StopRequested(ctx, "s1"))
}

func TestStopRequestedRedisDownReadsFalse(t *testing.T) {
	mr, store := setupFlagStore(t)
	mr.Close()

	assert.False(t, store.StopRequested(context.Background(), "s1"))
}
