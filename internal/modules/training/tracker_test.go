package training

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartsIdle(t *testing.T) {
	tracker := NewTracker()

	s := tracker.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.JobID)
	assert.Zero(t, s.Progress)
}

func TestTrackerBeginResetsPreviousRun(t *testing.T) {
	tracker := NewTracker()

	tracker.Begin("job-1", 100, time.Now())
	tracker.Update(50, 100, 10, 20, Metrics{Loss: 0.4})
	tracker.Finish(StateCompleted, "model_a", "", time.Now())

	tracker.Begin("job-2", 200, time.Now())
	s := tracker.Snapshot()
	assert.Equal(t, "job-2", s.JobID)
	assert.Equal(t, StateRunning, s.State)
	assert.Equal(t, 200, s.TotalEpochs)
	assert.Zero(t, s.CurrentEpoch)
	assert.Zero(t, s.Progress)
	assert.Empty(t, s.ModelID)
	assert.Nil(t, s.FinishedAt)
}

func TestTrackerProgressPercent(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin("job-1", 10, time.Now())

	tracker.Update(1, 10, 0, 0, Metrics{})
	assert.InDelta(t, 0.0, tracker.Snapshot().Progress, 1e-9)

	tracker.Update(5, 10, 50, 100, Metrics{})
	assert.InDelta(t, 45.0, tracker.Snapshot().Progress, 1e-9)

	tracker.Update(10, 10, 100, 100, Metrics{})
	assert.InDelta(t, 100.0, tracker.Snapshot().Progress, 1e-9)
}

func TestTrackerUpdateIgnoredAfterFinish(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin("job-1", 10, time.Now())
	tracker.Finish(StateCancelled, "", "", time.Now())

	// A poll response arriving after cancellation must not flip the state.
	tracker.Update(9, 10, 1, 1, Metrics{Accuracy: 0.9})

	s := tracker.Snapshot()
	assert.Equal(t, StateCancelled, s.State)
	assert.Zero(t, s.CurrentEpoch)
}

func TestTrackerFinishSetsProgressAndElapsed(t *testing.T) {
	tracker := NewTracker()
	start := time.Now().Add(-time.Minute)
	tracker.Begin("job-1", 10, start)
	tracker.Update(3, 10, 0, 0, Metrics{})

	finished := start.Add(90 * time.Second)
	tracker.Finish(StateCompleted, "model_x", "", finished)

	s := tracker.Snapshot()
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, "model_x", s.ModelID)
	assert.InDelta(t, 100.0, s.Progress, 1e-9)
	assert.InDelta(t, 90.0, s.ElapsedSecs, 1e-9)
	require.NotNil(t, s.FinishedAt)
}

func TestTrackerConcurrentReadsAndWrites(t *testing.T) {
	tracker := NewTracker()
	tracker.Begin("job-1", 100, time.Now())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				tracker.Update(i, 100, 0, 0, Metrics{Loss: float64(i)})
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s := tracker.Snapshot()
				// Epoch and loss were written together; a torn snapshot
				// would break this relationship.
				assert.InDelta(t, float64(s.CurrentEpoch), s.Metrics.Loss, 1e-9)
			}
		}()
	}
	wg.Wait()
}
