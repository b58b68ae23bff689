package lockguard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard_AcquireRelease(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()
	id := uuid.New()

	ok, err := g.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire within the timeout must fail")

	require.NoError(t, g.Release(ctx, id))

	ok, err = g.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "acquire after release must succeed")
}

func TestMemoryGuard_IndependentAccounts(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok, "locks on different accounts are independent")
}

func TestMemoryGuard_StaleReclaim(t *testing.T) {
	g := NewMemoryGuard(5 * time.Minute)
	ctx := context.Background()
	id := uuid.New()

	current := time.Now()
	g.now = func() time.Time { return current }

	ok, err := g.Acquire(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// Within the timeout: contention.
	current = current.Add(4 * time.Minute)
	ok, err = g.Acquire(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// Past the timeout: the abandoned lock is reclaimed.
	current = current.Add(2 * time.Minute)
	ok, err = g.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "lock held past the timeout is treated as abandoned")
}

func TestMemoryGuard_ConcurrentAcquireExactlyOne(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()
	id := uuid.New()

	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := g.Acquire(ctx, id)
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins, "exactly one concurrent acquirer wins")
}

func TestMemoryGuard_ReleaseUnheldIsNoop(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	assert.NoError(t, g.Release(context.Background(), uuid.New()))
}
