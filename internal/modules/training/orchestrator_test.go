package training

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/registry"
	testdb "github.com/aristath/foundry/internal/testing"
)

// fakeTrainer scripts the backend's behavior for orchestrator tests.
type fakeTrainer struct {
	result  *Result
	err     error
	epochs  int
	started chan struct{} // closed once training is underway
	release chan struct{} // training blocks until this closes
}

func newFakeTrainer() *fakeTrainer {
	return &fakeTrainer{
		result:  &Result{Accuracy: 0.8, Artifact: []byte("weights")},
		epochs:  3,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (f *fakeTrainer) Train(ctx context.Context, params Parameters, progress ProgressFunc, cancelled func() bool) (*Result, error) {
	close(f.started)
	<-f.release

	for epoch := 1; epoch <= f.epochs; epoch++ {
		if cancelled() {
			return nil, ctx.Err()
		}
		progress(epoch, f.epochs, epoch, f.epochs, Metrics{Accuracy: 0.5, Loss: 1.0 / float64(epoch)})
	}
	return f.result, f.err
}

type fakeStore struct {
	mu        sync.Mutex
	createErr error
	created   []*registry.ModelVersion
	cleanups  []int
}

func (s *fakeStore) Create(artifact []byte, accuracy float64, params json.RawMessage) (*registry.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	v := &registry.ModelVersion{
		ID:        registry.NewVersionID(time.Now()),
		CreatedAt: time.Now(),
		Accuracy:  accuracy,
		SizeBytes: int64(len(artifact)),
		Params:    params,
	}
	s.created = append(s.created, v)
	return v, nil
}

func (s *fakeStore) Cleanup(keepN int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, keepN)
	return 0, len(s.created), nil
}

func newTestOrchestrator(t *testing.T, trainer Trainer, store ModelStore) (*Orchestrator, *HistoryRepository, func()) {
	t.Helper()
	db, cleanup := testdb.NewTestDB(t, "models")
	history := NewHistoryRepository(db.Conn(), zerolog.Nop())
	manager := events.NewManager(events.NewBus(zerolog.Nop()), zerolog.Nop())
	orch := NewOrchestrator(trainer, store, history, nil, manager, 5, zerolog.Nop())
	return orch, history, cleanup
}

func waitForTerminal(t *testing.T, orch *Orchestrator) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s := orch.Status()
		if s.State.Terminal() {
			// The worker flips running=false after the tracker write.
			for orch.Running() {
				time.Sleep(time.Millisecond)
			}
			return s
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached a terminal state, state=%s", s.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOrchestratorSuccessfulRun(t *testing.T) {
	trainer := newFakeTrainer()
	store := &fakeStore{}
	orch, history, cleanup := newTestOrchestrator(t, trainer, store)
	defer cleanup()

	jobID, err := orch.Start(nil, false)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	close(trainer.release)

	s := waitForTerminal(t, orch)
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, jobID, s.JobID)
	assert.NotEmpty(t, s.ModelID)
	assert.InDelta(t, 100.0, s.Progress, 1e-9)

	require.Len(t, store.created, 1)
	assert.InDelta(t, 0.8, store.created[0].Accuracy, 1e-9)
	assert.Equal(t, []int{5}, store.cleanups, "retention sweep runs after success")

	runs, err := history.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StateCompleted, runs[0].Status)
	assert.Equal(t, jobID, runs[0].ID)
}

func TestOrchestratorRejectsConcurrentStart(t *testing.T) {
	trainer := newFakeTrainer()
	orch, _, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	jobID, err := orch.Start(nil, false)
	require.NoError(t, err)
	<-trainer.started

	_, err = orch.Start(nil, false)
	var already *AlreadyRunningError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, jobID, already.JobID)

	close(trainer.release)
	waitForTerminal(t, orch)
}

func TestOrchestratorStartAfterTerminalState(t *testing.T) {
	trainer := newFakeTrainer()
	orch, _, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	close(trainer.release)
	waitForTerminal(t, orch)

	// The slot frees up once the previous job completed.
	second := newFakeTrainer()
	orch.trainer = second
	_, err = orch.Start(nil, false)
	require.NoError(t, err)
	close(second.release)
	waitForTerminal(t, orch)
}

func TestOrchestratorValidationRejection(t *testing.T) {
	trainer := newFakeTrainer()
	orch, history, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	bad := DefaultParameters()
	bad.Epochs = 1
	bad.BatchSize = 1000

	_, err := orch.Start(&bad, false)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)

	assert.Equal(t, StateIdle, orch.Status().State, "rejected start leaves the machine idle")
	runs, err := history.List(10)
	require.NoError(t, err)
	assert.Empty(t, runs, "rejected runs don't enter history")
}

func TestOrchestratorCancellation(t *testing.T) {
	trainer := newFakeTrainer()
	store := &fakeStore{}
	orch, history, cleanup := newTestOrchestrator(t, trainer, store)
	defer cleanup()

	jobID, err := orch.Start(nil, false)
	require.NoError(t, err)
	<-trainer.started

	orch.Stop()
	close(trainer.release)

	s := waitForTerminal(t, orch)
	assert.Equal(t, StateCancelled, s.State)
	assert.Empty(t, store.created, "cancelled runs produce no model")

	runs, err := history.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StateCancelled, runs[0].Status)
	assert.Equal(t, jobID, runs[0].ID)
}

func TestOrchestratorStopWhenIdleIsNoop(t *testing.T) {
	orch, _, cleanup := newTestOrchestrator(t, newFakeTrainer(), &fakeStore{})
	defer cleanup()

	orch.Stop()
	assert.Equal(t, StateIdle, orch.Status().State)
}

func TestOrchestratorTrainerFailure(t *testing.T) {
	trainer := newFakeTrainer()
	trainer.err = errors.New("loss diverged")
	trainer.result = nil
	orch, history, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	close(trainer.release)

	s := waitForTerminal(t, orch)
	assert.Equal(t, StateFailed, s.State)
	assert.Contains(t, s.Error, "loss diverged")

	runs, err := history.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StateFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "loss diverged")
}

func TestOrchestratorStorageFailureMarksRunFailed(t *testing.T) {
	trainer := newFakeTrainer()
	store := &fakeStore{createErr: &registry.StorageError{Op: "version insert", Cause: errors.New("disk full")}}
	orch, _, cleanup := newTestOrchestrator(t, trainer, store)
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	close(trainer.release)

	s := waitForTerminal(t, orch)
	assert.Equal(t, StateFailed, s.State)
	assert.Contains(t, s.Error, "disk full")
	assert.Empty(t, s.ModelID)
	assert.Empty(t, store.cleanups, "no retention sweep after a failed persist")
}

func TestOrchestratorProgressVisibleWhileRunning(t *testing.T) {
	trainer := newFakeTrainer()
	orch, _, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	<-trainer.started

	s := orch.Status()
	assert.Equal(t, StateRunning, s.State)
	assert.Equal(t, DefaultParameters().Epochs, s.TotalEpochs)

	close(trainer.release)
	waitForTerminal(t, orch)
}

func TestOrchestratorUsesLastRunParams(t *testing.T) {
	trainer := newFakeTrainer()
	orch, history, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	custom := DefaultParameters()
	custom.Epochs = 250
	custom.TrainingDays = 500

	_, err := orch.Start(&custom, false)
	require.NoError(t, err)
	close(trainer.release)
	waitForTerminal(t, orch)

	last, err := history.LastParams()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 250, last.Epochs)
	assert.Equal(t, 500, last.TrainingDays)

	// nil params resolves to the previous run's parameters.
	second := newFakeTrainer()
	orch.trainer = second
	_, err = orch.Start(nil, false)
	require.NoError(t, err)
	assert.Equal(t, 250, orch.Status().TotalEpochs)
	close(second.release)
	waitForTerminal(t, orch)
}

func TestOrchestratorShutdownCancelsRunningJob(t *testing.T) {
	trainer := newFakeTrainer()
	orch, _, cleanup := newTestOrchestrator(t, trainer, &fakeStore{})
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	<-trainer.started
	close(trainer.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, orch.Shutdown(ctx))
	assert.False(t, orch.Running())
}

func TestStopConcurrentWithRestart(t *testing.T) {
	trainer1 := newFakeTrainer()
	store := &fakeStore{}
	orch, _, cleanup := newTestOrchestrator(t, trainer1, store)
	defer cleanup()

	_, err := orch.Start(nil, false)
	require.NoError(t, err)
	<-trainer1.started

	// Hammer Stop while the first job finishes and a second one starts;
	// Stop must not touch orchestrator state outside the lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			orch.Stop()
		}
	}()

	close(trainer1.release)
	waitForTerminal(t, orch)

	trainer2 := newFakeTrainer()
	close(trainer2.release)
	orch.trainer = trainer2
	if _, err := orch.Start(nil, false); err == nil {
		waitForTerminal(t, orch)
	}
	<-done
}
