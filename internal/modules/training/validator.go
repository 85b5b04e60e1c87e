package training

import "fmt"

// Validation bounds for training parameters. Values outside these ranges
// either starve the model of data or burn compute for nothing.
const (
	MinTrainingDays    = 30
	MaxTrainingDays    = 1095
	MinEpochs          = 10
	MaxEpochs          = 1000
	MinBatchSize       = 8
	MaxBatchSize       = 128
	MinLearningRate    = 0.0001
	MaxLearningRate    = 0.1
	MinSequenceLength  = 10
	MaxSequenceLength  = 200
	MinValidationSplit = 10
	MaxValidationSplit = 30
)

// Validate checks a parameter set and returns every violation at once as a
// *ValidationErrors, or nil when the set is acceptable.
func Validate(p Parameters) error {
	var violations []ValidationError

	checkIntRange := func(field string, value, min, max int) {
		if value < min || value > max {
			violations = append(violations, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be between %d and %d, got %d", min, max, value),
			})
		}
	}

	checkIntRange("training_days", p.TrainingDays, MinTrainingDays, MaxTrainingDays)
	checkIntRange("epochs", p.Epochs, MinEpochs, MaxEpochs)
	checkIntRange("batch_size", p.BatchSize, MinBatchSize, MaxBatchSize)
	checkIntRange("sequence_length", p.SequenceLength, MinSequenceLength, MaxSequenceLength)
	checkIntRange("validation_split", p.ValidationSplit, MinValidationSplit, MaxValidationSplit)

	if p.LearningRate < MinLearningRate || p.LearningRate > MaxLearningRate {
		violations = append(violations, ValidationError{
			Field:   "learning_rate",
			Message: fmt.Sprintf("must be between %g and %g, got %g", MinLearningRate, MaxLearningRate, p.LearningRate),
		})
	}

	if len(p.Indicators) == 0 {
		violations = append(violations, ValidationError{
			Field:   "indicators",
			Message: "at least one indicator is required",
		})
	}
	for _, name := range p.Indicators {
		if !KnownIndicator(name) {
			violations = append(violations, ValidationError{
				Field:   "indicators",
				Message: fmt.Sprintf("unknown indicator %q", name),
			})
		}
	}

	if len(violations) > 0 {
		return &ValidationErrors{Violations: violations}
	}
	return nil
}
