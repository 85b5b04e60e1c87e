package training

import (
	"sync/atomic"
	"time"
)

// Tracker holds the progress snapshot for the current or most recent job.
// Writers replace the whole snapshot; readers always see a consistent one.
type Tracker struct {
	snapshot atomic.Pointer[Snapshot]
}

// NewTracker starts in the idle state with no job recorded.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.snapshot.Store(&Snapshot{State: StateIdle})
	return t
}

// Snapshot returns the current view. Elapsed time is computed at read time
// for running jobs so the value is always fresh.
func (t *Tracker) Snapshot() Snapshot {
	s := *t.snapshot.Load()
	if s.State == StateRunning && s.StartedAt != nil {
		s.ElapsedSecs = time.Since(*s.StartedAt).Seconds()
	}
	return s
}

// Begin resets the tracker for a newly started job.
func (t *Tracker) Begin(jobID string, totalEpochs int, startedAt time.Time) {
	t.snapshot.Store(&Snapshot{
		JobID:       jobID,
		State:       StateRunning,
		TotalEpochs: totalEpochs,
		StartedAt:   &startedAt,
	})
}

// Update records trainer progress. Ignored unless the job is still running,
// so a late poll can't resurrect a finished job.
func (t *Tracker) Update(epoch, totalEpochs, batch, totalBatches int, metrics Metrics) {
	cur := t.snapshot.Load()
	if cur.State != StateRunning {
		return
	}
	next := *cur
	next.CurrentEpoch = epoch
	next.TotalEpochs = totalEpochs
	next.CurrentBatch = batch
	next.TotalBatches = totalBatches
	next.Metrics = metrics
	next.Progress = progressPercent(epoch, totalEpochs, batch, totalBatches)
	t.snapshot.Store(&next)
}

// Finish moves the tracker to a terminal state.
func (t *Tracker) Finish(state JobState, modelID string, errMsg string, finishedAt time.Time) {
	cur := t.snapshot.Load()
	next := *cur
	next.State = state
	next.ModelID = modelID
	next.Error = errMsg
	next.FinishedAt = &finishedAt
	if next.StartedAt != nil {
		next.ElapsedSecs = finishedAt.Sub(*next.StartedAt).Seconds()
	}
	if state == StateCompleted {
		next.Progress = 100
	}
	t.snapshot.Store(&next)
}

// progressPercent maps epoch/batch position onto [0,100]. Batch position
// within the current epoch contributes fractionally.
func progressPercent(epoch, totalEpochs, batch, totalBatches int) float64 {
	if totalEpochs <= 0 {
		return 0
	}
	done := float64(epoch - 1)
	if done < 0 {
		done = 0
	}
	if totalBatches > 0 && batch > 0 {
		frac := float64(batch) / float64(totalBatches)
		if frac > 1 {
			frac = 1
		}
		done += frac
	}
	pct := done / float64(totalEpochs) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
