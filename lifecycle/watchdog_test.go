package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchdogCompletedBeforeDeadlineIsNotInterrupted(t *testing.T) {
	w := NewWatchdog()
	ctx := w.ProcessingStarting(context.Background(), time.Hour)
	w.ProcessingCompleted()

	assert.False(t, w.Interrupted())
	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled after ProcessingCompleted")
	}
}

func TestWatchdogFiresDeadlineWhenNotCompleted(t *testing.T) {
	w := NewWatchdog()
	ctx := w.ProcessingStarting(context.Background(), 10*time.Millisecond)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("watchdog did not cancel context after deadline")
	}
	assert.True(t, w.Interrupted())
}

func TestWatchdogCompletedBeforeDeadlineStopsTimer(t *testing.T) {
	w := NewWatchdog()
	ctx := w.ProcessingStarting(context.Background(), 30*time.Millisecond)
	w.ProcessingCompleted()

	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, w.Interrupted(), "timer should have been stopped before it could fire")
}
