package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_PushPop(t *testing.T) {
	c := NewMemoryClient()
	defer c.Close()
	ctx := context.Background()

	payload := []byte("a")
	require.NoError(t, c.Push(ctx, "q", payload))
	payload[0] = 'z'
	require.NoError(t, c.Push(ctx, "q", []byte("b")))
	assert.Equal(t, 2, c.Len("q"))

	got, err := c.Pop(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	got, err = c.Pop(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))

	got, err = c.Pop(ctx, "q", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryClient_PopWakesOnPush(t *testing.T) {
	c := NewMemoryClient()
	defer c.Close()
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		got []byte
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err = c.Pop(ctx, "q", 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Push(ctx, "q", []byte("late")))
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "late", string(got))
}

func TestMemoryClient_CloseAndCancel(t *testing.T) {
	c := NewMemoryClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Pop(ctx, "q", time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	done := make(chan error, 1)
	go func() {
		_, err := c.Pop(context.Background(), "q", 5*time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.ErrorIs(t, c.Push(context.Background(), "q", nil), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestMemoryClient_Bookkeeping(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()

	assert.False(t, c.Alive("findings", "w1"))
	require.NoError(t, c.Heartbeat(ctx, "findings", "w1"))
	assert.True(t, c.Alive("findings", "w1"))

	require.NoError(t, c.IncrementWorkerCount(ctx, "findings"))
	n, err := c.WorkerCount(ctx, "findings")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, c.DecrementWorkerCount(ctx, "findings"))
	n, _ = c.WorkerCount(ctx, "findings")
	assert.Equal(t, 0, n)
}

func TestMessages_IsValid(t *testing.T) {
	assert.Error(t, (&ExecutionMessage{}).IsValid())
	assert.Error(t, (&ExecutionMessage{ExecutionID: "e", TaskID: "t", Tool: "x"}).IsValid())

	m := &ExecutionMessage{ExecutionID: "e", TaskID: "t", Tool: "x", SubmittedAt: time.Now().Add(-time.Minute).UnixMilli()}
	require.NoError(t, m.IsValid())
	assert.GreaterOrEqual(t, m.Age(), time.Minute)

	assert.Error(t, (&FindingsMessage{ExecutionID: "e"}).IsValid())
	assert.NoError(t, (&FindingsMessage{ExecutionID: "e", CompletedAt: 1}).IsValid())
}
