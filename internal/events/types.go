// Package events provides event management functionality.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents different event types
type EventType string

const (
	TrainingStarted   EventType = "TRAINING_STARTED"
	TrainingProgress  EventType = "TRAINING_PROGRESS"
	TrainingCompleted EventType = "TRAINING_COMPLETED"
	TrainingFailed    EventType = "TRAINING_FAILED"
	TrainingCancelled EventType = "TRAINING_CANCELLED"
	ModelActivated    EventType = "MODEL_ACTIVATED"
	ModelDeleted      EventType = "MODEL_DELETED"
	ModelsCleaned     EventType = "MODELS_CLEANED"
	ScheduleChanged   EventType = "SCHEDULE_CHANGED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event with typed data.
// The Data field is a map for wire compatibility; GetTypedData converts it
// back to the corresponding EventData struct.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// GetTypedData attempts to convert the Data map to typed EventData.
// Returns nil if the event type is unknown or conversion fails.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	switch e.Type {
	case TrainingStarted:
		var data TrainingStartedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrainingProgress:
		var data TrainingProgressData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrainingCompleted:
		var data TrainingCompletedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrainingFailed:
		var data TrainingFailedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case TrainingCancelled:
		var data TrainingCancelledData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ModelActivated:
		var data ModelActivatedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ModelDeleted:
		var data ModelDeletedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ModelsCleaned:
		var data ModelsCleanedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ScheduleChanged:
		var data ScheduleChangedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ErrorOccurred:
		var data ErrorEventData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	}

	return nil
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

// convertEventDataToMap converts typed EventData to a map for the wire format
func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil
	}
	return m
}
