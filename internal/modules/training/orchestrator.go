package training

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/registry"
	"github.com/aristath/foundry/internal/modules/settings"
)

// ProgressFunc receives trainer progress updates during a run.
type ProgressFunc func(epoch, totalEpochs, batch, totalBatches int, metrics Metrics)

// Trainer is the backend that actually trains a model. Implementations must
// call progress as the run advances and consult cancelled at batch
// boundaries, returning promptly once it reports true.
type Trainer interface {
	Train(ctx context.Context, params Parameters, progress ProgressFunc, cancelled func() bool) (*Result, error)
}

// ModelStore is the slice of the registry the orchestrator needs.
type ModelStore interface {
	Create(artifact []byte, accuracy float64, params json.RawMessage) (*registry.ModelVersion, error)
	Cleanup(keepN int) (deleted, kept int, err error)
}

// Orchestrator runs at most one training job at a time and exposes an
// atomic view of its progress.
type Orchestrator struct {
	trainer  Trainer
	store    ModelStore
	history  *HistoryRepository
	settings *settings.Repository
	events   *events.Manager
	tracker  *Tracker
	defKeep  int
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	jobID   string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator wires the training orchestrator.
func NewOrchestrator(
	trainer Trainer,
	store ModelStore,
	history *HistoryRepository,
	settingsRepo *settings.Repository,
	eventManager *events.Manager,
	defaultKeep int,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		trainer:  trainer,
		store:    store,
		history:  history,
		settings: settingsRepo,
		events:   eventManager,
		tracker:  NewTracker(),
		defKeep:  defaultKeep,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Start launches a training job. A nil params means "reuse the last run's
// parameters, or the defaults when there is no history". Returns the job ID,
// or *ValidationErrors / *AlreadyRunningError without touching the running
// job.
func (o *Orchestrator) Start(params *Parameters, scheduled bool) (string, error) {
	resolved, err := o.resolveParams(params)
	if err != nil {
		return "", err
	}
	if err := Validate(resolved); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.running {
		jobID := o.jobID
		o.mu.Unlock()
		return "", &AlreadyRunningError{JobID: jobID}
	}

	jobID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	o.running = true
	o.jobID = jobID
	o.cancel = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	startedAt := time.Now().UTC()
	o.tracker.Begin(jobID, resolved.Epochs, startedAt)

	o.log.Info().
		Str("job_id", jobID).
		Bool("scheduled", scheduled).
		Int("epochs", resolved.Epochs).
		Int("training_days", resolved.TrainingDays).
		Msg("Training started")
	o.events.EmitTyped(events.TrainingStarted, "training", &events.TrainingStartedData{
		JobID:       jobID,
		TotalEpochs: resolved.Epochs,
		Scheduled:   scheduled,
	})

	go o.run(ctx, jobID, resolved, startedAt)
	return jobID, nil
}

// Stop requests cancellation of the running job. A stop with nothing running
// is a no-op so callers don't have to race against completion.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	running := o.running
	jobID := o.jobID
	o.mu.Unlock()

	if !running || cancel == nil {
		return
	}
	o.log.Info().Str("job_id", jobID).Msg("Stop requested")
	cancel()
}

// Status returns an atomic snapshot of the current or most recent job.
func (o *Orchestrator) Status() Snapshot {
	return o.tracker.Snapshot()
}

// Running reports whether a job currently holds the training slot.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Shutdown cancels any running job and waits for the worker to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.Stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) resolveParams(params *Parameters) (Parameters, error) {
	if params != nil {
		return *params, nil
	}
	last, err := o.history.LastParams()
	if err != nil {
		return Parameters{}, err
	}
	if last != nil {
		return *last, nil
	}
	return DefaultParameters(), nil
}

func (o *Orchestrator) run(ctx context.Context, jobID string, params Parameters, startedAt time.Time) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	progress := func(epoch, totalEpochs, batch, totalBatches int, metrics Metrics) {
		o.tracker.Update(epoch, totalEpochs, batch, totalBatches, metrics)
		o.events.EmitTyped(events.TrainingProgress, "training", &events.TrainingProgressData{
			JobID:        jobID,
			CurrentEpoch: epoch,
			TotalEpochs:  totalEpochs,
			CurrentBatch: batch,
			TotalBatches: totalBatches,
			Loss:         metrics.Loss,
			Accuracy:     metrics.Accuracy,
			ValLoss:      metrics.ValLoss,
		})
	}
	cancelled := func() bool { return ctx.Err() != nil }

	result, err := o.trainer.Train(ctx, params, progress, cancelled)
	finishedAt := time.Now().UTC()

	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		o.finish(jobID, params, startedAt, finishedAt, StateCancelled, "", "", 0)
		o.events.EmitTyped(events.TrainingCancelled, "training", &events.TrainingCancelledData{JobID: jobID})
		o.log.Info().Str("job_id", jobID).Msg("Training cancelled")

	case err != nil:
		trainErr := &TrainingError{JobID: jobID, Cause: err}
		o.finish(jobID, params, startedAt, finishedAt, StateFailed, "", trainErr.Error(), 0)
		o.events.EmitTyped(events.TrainingFailed, "training", &events.TrainingFailedData{
			JobID: jobID,
			Error: trainErr.Error(),
		})
		o.log.Error().Err(err).Str("job_id", jobID).Msg("Training failed")

	default:
		version, storeErr := o.store.Create(result.Artifact, result.Accuracy, params.Marshal())
		if storeErr != nil {
			// A model we can't persist is a failed run, and the cause travels
			// with it.
			o.finish(jobID, params, startedAt, finishedAt, StateFailed, "", storeErr.Error(), result.Accuracy)
			o.events.EmitTyped(events.TrainingFailed, "training", &events.TrainingFailedData{
				JobID: jobID,
				Error: storeErr.Error(),
			})
			o.log.Error().Err(storeErr).Str("job_id", jobID).Msg("Failed to persist trained model")
			return
		}

		o.finishCompleted(jobID, params, startedAt, finishedAt, version.ID, result.Accuracy)
		o.events.EmitTyped(events.TrainingCompleted, "training", &events.TrainingCompletedData{
			JobID:           jobID,
			ModelID:         version.ID,
			Accuracy:        result.Accuracy,
			DurationSeconds: int(finishedAt.Sub(startedAt).Seconds()),
		})
		o.log.Info().
			Str("job_id", jobID).
			Str("model_id", version.ID).
			Float64("accuracy", result.Accuracy).
			Msg("Training completed")

		o.evict()
	}
}

func (o *Orchestrator) finish(jobID string, params Parameters, startedAt, finishedAt time.Time, state JobState, modelID, errMsg string, accuracy float64) {
	o.tracker.Finish(state, modelID, errMsg, finishedAt)
	o.recordRun(jobID, params, startedAt, finishedAt, state, modelID, errMsg, accuracy)
}

func (o *Orchestrator) finishCompleted(jobID string, params Parameters, startedAt, finishedAt time.Time, modelID string, accuracy float64) {
	o.tracker.Finish(StateCompleted, modelID, "", finishedAt)
	o.recordRun(jobID, params, startedAt, finishedAt, StateCompleted, modelID, "", accuracy)
}

func (o *Orchestrator) recordRun(jobID string, params Parameters, startedAt, finishedAt time.Time, state JobState, modelID, errMsg string, accuracy float64) {
	run := &Run{
		ID:         jobID,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		Status:     state,
		Accuracy:   accuracy,
		ModelID:    modelID,
		Error:      errMsg,
		Params:     params.Marshal(),
	}
	if err := o.history.Record(run); err != nil {
		o.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record training run")
	}
}

// evict trims the model store to the retention count after a successful run.
func (o *Orchestrator) evict() {
	keep := o.defKeep
	if o.settings != nil {
		if v, err := o.settings.GetInt("model_keep_count", o.defKeep); err == nil {
			keep = v
		}
	}
	deleted, kept, err := o.store.Cleanup(keep)
	if err != nil {
		o.log.Warn().Err(err).Msg("Post-training cleanup failed")
		return
	}
	if deleted > 0 {
		o.log.Info().Int("deleted", deleted).Int("kept", kept).Msg("Old model versions evicted")
	}
}
