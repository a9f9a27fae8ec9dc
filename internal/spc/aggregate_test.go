package spc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-qa/qms-cli/internal/model"
)

func samplesOf(values ...float64) []model.Sample {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	out := make([]model.Sample, len(values))
	for i, v := range values {
		out[i] = model.Sample{
			RecordLabel: "REC-" + string(rune('A'+i)),
			MeasuredAt:  base.Add(time.Duration(i) * time.Hour),
			Value:       v,
		}
	}
	return out
}

func TestAggregate_KnownValues(t *testing.T) {
	res := Aggregate(model.Criterion{Code: "DIM-01"}, samplesOf(10, 12, 14))

	require.False(t, res.Insufficient)
	assert.Equal(t, 3, res.SampleCount)
	assert.InDelta(t, 12.0, res.Mean, 1e-9)
	assert.InDelta(t, 2.0, res.StdDev, 1e-9)
	assert.InDelta(t, 4.0, res.Range, 1e-9)
	assert.InDelta(t, 10.0, res.Min, 1e-9)
	assert.InDelta(t, 14.0, res.Max, 1e-9)
	assert.InDelta(t, 18.0, res.UCL, 1e-9)
	assert.InDelta(t, 6.0, res.LCL, 1e-9)
}

func TestAggregate_MovingRange(t *testing.T) {
	res := Aggregate(model.Criterion{Code: "DIM-01"}, samplesOf(10, 12, 14))

	require.Len(t, res.MovingRanges, 2)
	assert.InDelta(t, 2.0, res.MovingRanges[0].Value, 1e-9)
	assert.InDelta(t, 2.0, res.MovingRanges[1].Value, 1e-9)
	assert.InDelta(t, 2.0, res.MeanMR, 1e-9)
	assert.InDelta(t, 6.534, res.UCLR, 1e-9)
	for _, mr := range res.MovingRanges {
		assert.False(t, mr.Flagged)
	}
}

func TestAggregate_InsufficientData(t *testing.T) {
	for _, values := range [][]float64{{}, {42}} {
		res := Aggregate(model.Criterion{Code: "DIM-01"}, samplesOf(values...))
		assert.True(t, res.Insufficient)
		assert.Equal(t, len(values), res.SampleCount)
		assert.Empty(t, res.Samples)
		assert.Empty(t, res.MovingRanges)
	}
}

func TestAggregate_FlagsOutOfControlPoints(t *testing.T) {
	// A stable run with one wild point; the wild point stays in the
	// statistics but carries a flag.
	values := []float64{10, 10.1, 9.9, 10, 10.05, 9.95, 10.1, 9.9, 10, 25}
	res := Aggregate(model.Criterion{Code: "DIM-01"}, samplesOf(values...))

	require.False(t, res.Insufficient)
	assert.True(t, res.Samples[len(res.Samples)-1].Flagged, "outlier should be flagged")
	for _, s := range res.Samples[:len(res.Samples)-1] {
		assert.False(t, s.Flagged, "stable points should not be flagged")
	}
	// The jump to 25 also blows past the moving-range UCL.
	assert.True(t, res.MovingRanges[len(res.MovingRanges)-1].Flagged)
	assert.Equal(t, 10, res.SampleCount)
}

func TestAggregate_Deterministic(t *testing.T) {
	in := samplesOf(3.2, 3.4, 3.1, 3.3)
	a := Aggregate(model.Criterion{Code: "T"}, in)
	b := Aggregate(model.Criterion{Code: "T"}, in)
	assert.Equal(t, a, b)
	// Input slice is never mutated.
	for _, s := range in {
		assert.False(t, s.Flagged)
	}
}

func TestCollectSamples_FirstMatchingItemPerRecord(t *testing.T) {
	v := func(x float64) *float64 { return &x }
	records := []model.Record{
		{
			RecordNumber: "REC-1",
			Items: []model.MeasurementItem{
				{CriterionID: "other", NumericValue: v(99)},
				{CriterionID: "crit", NumericValue: v(10)},
				{CriterionID: "crit", NumericValue: v(11)}, // duplicate, ignored
			},
		},
		{
			RecordNumber: "REC-2",
			Items: []model.MeasurementItem{
				{CriterionID: "crit", NumericValue: nil}, // unparsed, skipped
			},
		},
		{
			RecordNumber: "REC-3",
			Items: []model.MeasurementItem{
				{CriterionID: "crit", NumericValue: v(12)},
			},
		},
	}

	samples := CollectSamples("crit", records)
	require.Len(t, samples, 2)
	assert.Equal(t, "REC-1", samples[0].RecordLabel)
	assert.Equal(t, 10.0, samples[0].Value)
	assert.Equal(t, "REC-3", samples[1].RecordLabel)
	assert.Equal(t, 12.0, samples[1].Value)
}
