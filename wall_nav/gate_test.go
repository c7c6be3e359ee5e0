package wall_nav

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_OpenDoesNotBlock(t *testing.T) {
	g := NewGate(false)
	assert.False(t, g.Paused())
	assert.NoError(t, g.Wait(context.Background()))
}

func TestGate_PausedBlocksUntilResume(t *testing.T) {
	g := NewGate(true)
	require.True(t, g.Paused())

	var released atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Wait(context.Background()) == nil {
				released.Add(1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, released.Load())

	g.Resume()
	wg.Wait()
	assert.EqualValues(t, 3, released.Load())
	assert.False(t, g.Paused())
}

func TestGate_CancellationWakesWaiter(t *testing.T) {
	g := NewGate(true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by cancellation")
	}
	assert.True(t, g.Paused())
}

func TestGate_CancelledContextReportedWhenOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewGate(false).Wait(ctx), context.Canceled)
}

func TestGate_RepeatedTransitionsAreIdempotent(t *testing.T) {
	g := NewGate(false)
	g.Resume()
	g.Pause()
	g.Pause()
	assert.True(t, g.Paused())
	g.Resume()
	g.Resume()
	assert.False(t, g.Paused())
	assert.NoError(t, g.Wait(context.Background()))
}
