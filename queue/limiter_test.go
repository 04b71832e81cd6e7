package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	client, mr := setupTestClient(t)

	limiter, err := NewRedisLimiter(client, "nvd", 2, time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	// the window is full and miniredis time does not advance on its own
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(blocked), context.DeadlineExceeded)

	mr.FastForward(time.Second)
	require.NoError(t, limiter.Wait(ctx))
	assert.Equal(t, "1", mustGet(t, mr.Get, "taskforge:ratelimit:nvd"))
}

func TestRedisLimiter_SetsWindowWithFirstSlot(t *testing.T) {
	client, mr := setupTestClient(t)

	limiter, err := NewRedisLimiter(client, "nvd", 1, 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, limiter.Wait(context.Background()))
	assert.Equal(t, 30*time.Second, mr.TTL("taskforge:ratelimit:nvd"))
}

func TestRedisLimiter_RepairsCounterWithoutExpiry(t *testing.T) {
	client, mr := setupTestClient(t)
	require.NoError(t, mr.Set("taskforge:ratelimit:nvd", "7"))

	limiter, err := NewRedisLimiter(client, "nvd", 2, time.Second)
	require.NoError(t, err)

	ok, retryIn, err := limiter.take(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Second, retryIn)
	assert.Equal(t, time.Second, mr.TTL("taskforge:ratelimit:nvd"))
	assert.Equal(t, "8", mustGet(t, mr.Get, "taskforge:ratelimit:nvd"))
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	client, _ := setupTestClient(t)

	a, err := NewRedisLimiter(client, "shared", 1, time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLimiter(client, "shared", 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, a.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, b.Wait(ctx))
}

func TestNewRedisLimiter_Validation(t *testing.T) {
	client, _ := setupTestClient(t)

	_, err := NewRedisLimiter(client, "x", 0, time.Second)
	assert.Error(t, err)
	_, err = NewRedisLimiter(client, "x", 1, 0)
	assert.Error(t, err)
}

func mustGet(t *testing.T, get func(string) (string, error), key string) string {
	t.Helper()
	v, err := get(key)
	require.NoError(t, err)
	return v
}
