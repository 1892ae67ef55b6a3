package push

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTrackerStartRejectsConcurrentRun(t *testing.T) {
	tracker := NewRunTracker()
	require.NoError(t, tracker.Start())
	assert.Equal(t, StateRunning, tracker.State())

	err := tracker.Start()
	assert.Error(t, err)
}

func TestRunTrackerFinishResetsToIdleAndRecordsLastFinal(t *testing.T) {
	tracker := NewRunTracker()
	require.NoError(t, tracker.Start())

	tracker.Finish(StateFailed)
	assert.Equal(t, StateIdle, tracker.State())
	assert.Equal(t, StateFailed, tracker.LastFinal())

	require.NoError(t, tracker.Start())
	tracker.Finish(StateSuccess)
	assert.Equal(t, StateSuccess, tracker.LastFinal())
}

func TestRunTrackerConcurrentStartsAllowOnlyOneWinner(t *testing.T) {
	tracker := NewRunTracker()

	const attempts = 20
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tracker.Start(); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	tracker.Finish(StateSuccess)
}
