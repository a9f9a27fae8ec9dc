package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-qa/qms-cli/internal/model"
)

func items(outcomes ...model.Compliance) []model.MeasurementItem {
	out := make([]model.MeasurementItem, len(outcomes))
	for i, c := range outcomes {
		out[i] = model.MeasurementItem{Compliance: c}
	}
	return out
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Score)
	assert.Nil(t, s.Overall)
	assert.Zero(t, s.Failed)
}

func TestSummarize_AllUnknown(t *testing.T) {
	s := Summarize(items(model.ComplianceUnknown, model.ComplianceUnknown))
	assert.Zero(t, s.Total)
	assert.Zero(t, s.Score)
	assert.Nil(t, s.Overall, "no evaluable items means no verdict, not a pass")
}

func TestSummarize_MixedWithUnknowns(t *testing.T) {
	// Unknowns stay out of the denominator.
	s := Summarize(items(
		model.CompliancePass,
		model.ComplianceFail,
		model.ComplianceUnknown,
		model.CompliancePass,
	))
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Total)
	assert.InDelta(t, 66.666, s.Score, 0.001)
	require.NotNil(t, s.Overall)
	assert.False(t, *s.Overall)
}

func TestSummarize_AllPass(t *testing.T) {
	s := Summarize(items(model.CompliancePass, model.CompliancePass))
	assert.Equal(t, 100.0, s.Score)
	require.NotNil(t, s.Overall)
	assert.True(t, *s.Overall)
}

func TestSummarize_Idempotent(t *testing.T) {
	set := items(model.CompliancePass, model.ComplianceFail, model.ComplianceUnknown)
	first := Summarize(set)
	second := Summarize(set)
	assert.Equal(t, first, second)
}

func TestSummarize_EndToEndScenario(t *testing.T) {
	// Limits [99.5, 100.5], measurements 99.9 / 100.6 / 100.0.
	c := numericCriterion(f(99.5), f(100.5))

	var recorded []model.MeasurementItem
	for _, raw := range []string{"99.9", "100.6", "100.0"} {
		ev := Evaluate(c, raw)
		recorded = append(recorded, model.MeasurementItem{
			RawValue:     raw,
			NumericValue: ev.NumericValue,
			Compliance:   ev.Compliance,
			Deviation:    ev.Deviation,
		})
	}

	assert.Equal(t, model.CompliancePass, recorded[0].Compliance)
	assert.Equal(t, model.ComplianceFail, recorded[1].Compliance)
	assert.Equal(t, model.CompliancePass, recorded[2].Compliance)

	s := Summarize(recorded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 66.67, RoundScore(s.Score))
	require.NotNil(t, s.Overall)
	assert.False(t, *s.Overall)

	var rec model.Record
	s.Apply(&rec)
	assert.Equal(t, 1, rec.FailedCount)
	assert.NotNil(t, rec.Overall)
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 66.67, RoundScore(66.666666))
	assert.Equal(t, 0.0, RoundScore(0))
	assert.Equal(t, 100.0, RoundScore(100))
}
