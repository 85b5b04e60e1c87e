package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(DefaultParameters()))
}

func TestValidateBoundaryValues(t *testing.T) {
	p := DefaultParameters()
	p.TrainingDays = MinTrainingDays
	p.Epochs = MaxEpochs
	p.BatchSize = MinBatchSize
	p.LearningRate = MaxLearningRate
	p.SequenceLength = MaxSequenceLength
	p.ValidationSplit = MinValidationSplit
	assert.NoError(t, Validate(p), "bounds are inclusive")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	p := Parameters{
		TrainingDays:    5,      // below minimum
		Epochs:          5000,   // above maximum
		BatchSize:       4,      // below minimum
		LearningRate:    1.5,    // above maximum
		SequenceLength:  300,    // above maximum
		ValidationSplit: 50,     // above maximum
		Indicators:      nil,    // empty
	}

	err := Validate(p)
	require.Error(t, err)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 7, "every violation reported at once")

	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"training_days", "epochs", "batch_size", "learning_rate", "sequence_length", "validation_split", "indicators"} {
		assert.True(t, fields[f], "missing violation for %s", f)
	}
}

func TestValidateUnknownIndicator(t *testing.T) {
	p := DefaultParameters()
	p.Indicators = []string{"rsi", "astrology"}

	err := Validate(p)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "indicators", verr.Violations[0].Field)
	assert.Contains(t, verr.Violations[0].Message, "astrology")
}

func TestEssentialIndicatorsAreKnown(t *testing.T) {
	essential := EssentialIndicators()
	assert.NotEmpty(t, essential)
	for _, name := range essential {
		assert.True(t, KnownIndicator(name))
	}
}

func TestAllIndicatorsEssentialFirst(t *testing.T) {
	all := AllIndicators()
	require.NotEmpty(t, all)

	seenOptional := false
	for _, ind := range all {
		if !ind.Essential {
			seenOptional = true
		} else {
			assert.False(t, seenOptional, "essential indicators sort before optional ones")
		}
		assert.NotEmpty(t, ind.Columns, "indicator %s has no feature columns", ind.Name)
	}
}
