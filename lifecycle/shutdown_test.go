package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownWaiterDrainsCleanlyWhenWorkFinishesFast(t *testing.T) {
	w := NewShutdownWaiter()

	_, done, err := w.ProcessingStarting(context.Background())
	require.NoError(t, err)
	done()

	assert.True(t, w.Shutdown(time.Second))
}

func TestShutdownWaiterTimesOutWhileWorkStillRunning(t *testing.T) {
	w := NewShutdownWaiter()

	_, done, err := w.ProcessingStarting(context.Background())
	require.NoError(t, err)
	defer done()

	assert.False(t, w.Shutdown(20*time.Millisecond))
}

func TestShutdownWaiterRejectsNewWorkAfterShutdown(t *testing.T) {
	w := NewShutdownWaiter()
	go w.Shutdown(time.Second)
	time.Sleep(10 * time.Millisecond)

	_, _, err := w.ProcessingStarting(context.Background())
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestShutdownWaiterCancelsRegisteredContextsOnShutdown(t *testing.T) {
	w := NewShutdownWaiter()

	ctx, done, err := w.ProcessingStarting(context.Background())
	require.NoError(t, err)
	defer done()

	go w.Shutdown(time.Second)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("in-flight context should be canceled by Shutdown")
	}
}
