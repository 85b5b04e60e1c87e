package training

import (
	"fmt"
	"strings"
)

// ValidationError describes one parameter violation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found in a parameter set, so a
// caller can fix them all in one pass.
type ValidationErrors struct {
	Violations []ValidationError `json:"violations"`
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invalid training parameters: %s", strings.Join(msgs, "; "))
}

// AlreadyRunningError indicates a start attempt while a job holds the slot.
type AlreadyRunningError struct {
	JobID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("training already running (job %s)", e.JobID)
}

// TrainingError wraps a failure reported by the trainer backend.
type TrainingError struct {
	JobID string
	Cause error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training job %s failed: %v", e.JobID, e.Cause)
}

func (e *TrainingError) Unwrap() error {
	return e.Cause
}
