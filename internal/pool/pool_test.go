package pool

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSubmit_RunsTask(t *testing.T) {
	p := New(2, testLogger())
	done := make(chan struct{})

	require.NoError(t, p.Submit("t", func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSubmit_DoesNotBlock(t *testing.T) {
	p := New(1, testLogger())
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("blocked", func(ctx context.Context) { <-release }))
	}

	require.Eventually(t, func() bool {
		pending, running := p.Stats()
		return pending == 4 && running == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	const workers = 3
	p := New(workers, testLogger())

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit("work", func(ctx context.Context) {
			defer wg.Done()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(workers))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSubmit_AfterShutdown(t *testing.T) {
	p := New(1, testLogger())
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit("late", func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdown_WaitsForTasks(t *testing.T) {
	p := New(1, testLogger())
	var finished atomic.Bool

	require.NoError(t, p.Submit("slow", func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestShutdown_DeadlineCancelsTasks(t *testing.T) {
	p := New(1, testLogger())
	started := make(chan struct{})
	var cancelled, queuedRan atomic.Bool
	var queuedErr atomic.Value

	require.NoError(t, p.Submit("stuck", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}))
	<-started
	require.NoError(t, p.Submit("queued", func(ctx context.Context) {
		queuedRan.Store(true)
		queuedErr.Store(ctx.Err())
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cancelled.Load())
	assert.True(t, queuedRan.Load())
	assert.ErrorIs(t, queuedErr.Load().(error), context.Canceled)
}
