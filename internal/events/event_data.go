package events

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TrainingStartedData contains data for TrainingStarted events
type TrainingStartedData struct {
	JobID       string `json:"job_id"`
	TotalEpochs int    `json:"total_epochs"`
	Scheduled   bool   `json:"scheduled"` // true when triggered by the retraining scheduler
}

// EventType returns the event type for TrainingStartedData
func (d *TrainingStartedData) EventType() EventType {
	return TrainingStarted
}

// TrainingProgressData contains data for TrainingProgress events
type TrainingProgressData struct {
	JobID        string  `json:"job_id"`
	CurrentEpoch int     `json:"current_epoch"`
	TotalEpochs  int     `json:"total_epochs"`
	CurrentBatch int     `json:"current_batch"`
	TotalBatches int     `json:"total_batches"`
	Loss         float64 `json:"loss"`
	Accuracy     float64 `json:"accuracy"`
	ValLoss      float64 `json:"val_loss"`
}

// EventType returns the event type for TrainingProgressData
func (d *TrainingProgressData) EventType() EventType {
	return TrainingProgress
}

// TrainingCompletedData contains data for TrainingCompleted events
type TrainingCompletedData struct {
	JobID           string  `json:"job_id"`
	ModelID         string  `json:"model_id"`
	Accuracy        float64 `json:"accuracy"`
	DurationSeconds int     `json:"duration_seconds"`
}

// EventType returns the event type for TrainingCompletedData
func (d *TrainingCompletedData) EventType() EventType {
	return TrainingCompleted
}

// TrainingFailedData contains data for TrainingFailed events
type TrainingFailedData struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// EventType returns the event type for TrainingFailedData
func (d *TrainingFailedData) EventType() EventType {
	return TrainingFailed
}

// TrainingCancelledData contains data for TrainingCancelled events
type TrainingCancelledData struct {
	JobID string `json:"job_id"`
}

// EventType returns the event type for TrainingCancelledData
func (d *TrainingCancelledData) EventType() EventType {
	return TrainingCancelled
}

// ModelActivatedData contains data for ModelActivated events
type ModelActivatedData struct {
	ModelID    string `json:"model_id"`
	PreviousID string `json:"previous_id,omitempty"`
}

// EventType returns the event type for ModelActivatedData
func (d *ModelActivatedData) EventType() EventType {
	return ModelActivated
}

// ModelDeletedData contains data for ModelDeleted events
type ModelDeletedData struct {
	ModelID string `json:"model_id"`
}

// EventType returns the event type for ModelDeletedData
func (d *ModelDeletedData) EventType() EventType {
	return ModelDeleted
}

// ModelsCleanedData contains data for ModelsCleaned events
type ModelsCleanedData struct {
	Deleted int `json:"deleted"`
	Kept    int `json:"kept"`
}

// EventType returns the event type for ModelsCleanedData
func (d *ModelsCleanedData) EventType() EventType {
	return ModelsCleaned
}

// ScheduleChangedData contains data for ScheduleChanged events
type ScheduleChangedData struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds"`
	NextRunAt       string `json:"next_run_at,omitempty"`
}

// EventType returns the event type for ScheduleChangedData
func (d *ScheduleChangedData) EventType() EventType {
	return ScheduleChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Module  string `json:"module"`
	Message string `json:"message"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
