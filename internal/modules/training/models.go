// Package training orchestrates model training jobs: parameter validation,
// the job state machine, progress tracking and run history.
package training

import (
	"encoding/json"
	"time"
)

// JobState is the lifecycle state of a training job
type JobState string

const (
	StateIdle      JobState = "idle"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the state is a terminal outcome.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Parameters configure one training run
type Parameters struct {
	TrainingDays    int      `json:"training_days"`
	Epochs          int      `json:"epochs"`
	BatchSize       int      `json:"batch_size"`
	LearningRate    float64  `json:"learning_rate"`
	SequenceLength  int      `json:"sequence_length"`
	ValidationSplit int      `json:"validation_split"`
	Indicators      []string `json:"indicators"`
}

// DefaultParameters returns the parameter set used when a request omits
// everything, matching the values the trainer was tuned with.
func DefaultParameters() Parameters {
	return Parameters{
		TrainingDays:    365,
		Epochs:          100,
		BatchSize:       32,
		LearningRate:    0.001,
		SequenceLength:  60,
		ValidationSplit: 20,
		Indicators:      EssentialIndicators(),
	}
}

// Marshal encodes the parameters for persistence.
func (p Parameters) Marshal() json.RawMessage {
	data, _ := json.Marshal(p)
	return data
}

// Metrics are the latest measurements reported by the trainer
type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	ValLoss  float64 `json:"val_loss"`
}

// Snapshot is a point-in-time view of the current or most recent job.
// All fields are read together atomically.
type Snapshot struct {
	JobID        string     `json:"job_id,omitempty"`
	State        JobState   `json:"state"`
	CurrentEpoch int        `json:"current_epoch"`
	TotalEpochs  int        `json:"total_epochs"`
	CurrentBatch int        `json:"current_batch"`
	TotalBatches int        `json:"total_batches"`
	Progress     float64    `json:"progress"`
	Metrics      Metrics    `json:"metrics"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ElapsedSecs  float64    `json:"elapsed_seconds"`
	Error        string     `json:"error,omitempty"`
	ModelID      string     `json:"model_id,omitempty"`
}

// Run is one historical training run
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Status     JobState        `json:"status"`
	Accuracy   float64         `json:"accuracy"`
	ModelID    string          `json:"model_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Result is what a trainer backend hands back for a successful run
type Result struct {
	Accuracy float64
	Loss     float64
	ValLoss  float64
	Artifact []byte
}
