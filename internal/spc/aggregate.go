// Package spc computes descriptive statistics and control-chart
// parameters over measurement samples. Results feed the report builder
// and the spreadsheet exporter; nothing here touches storage or
// rendering.
package spc

import (
	"math"

	"github.com/brightline-qa/qms-cli/internal/model"
)

// d4SubgroupTwo is the D4 control-chart constant for a moving range of
// subgroup size 2: UCL_R = 3.267 * meanMR.
const d4SubgroupTwo = 3.267

// MinSamples is the number of contributing values below which no
// statistics are produced.
const MinSamples = 2

// Aggregate computes statistics and control limits for one criterion
// over samples in chronological record order. Fewer than MinSamples
// contributing values yields an insufficient-data result, not an
// error; callers must check Insufficient before rendering.
func Aggregate(criterion model.Criterion, samples []model.Sample) *model.AggregationResult {
	res := &model.AggregationResult{
		Criterion:   criterion,
		SampleCount: len(samples),
	}
	if len(samples) < MinSamples {
		res.Insufficient = true
		return res
	}

	// Work on a copy so flagging never mutates the caller's slice.
	res.Samples = make([]model.Sample, len(samples))
	copy(res.Samples, samples)

	n := float64(len(samples))
	var sum float64
	res.Min = samples[0].Value
	res.Max = samples[0].Value
	for _, s := range samples {
		sum += s.Value
		res.Min = math.Min(res.Min, s.Value)
		res.Max = math.Max(res.Max, s.Value)
	}
	res.Mean = sum / n
	res.Range = res.Max - res.Min

	var sq float64
	for _, s := range samples {
		d := s.Value - res.Mean
		sq += d * d
	}
	// Sample standard deviation, divisor n-1.
	res.StdDev = math.Sqrt(sq / (n - 1))

	res.UCL = res.Mean + 3*res.StdDev
	res.LCL = res.Mean - 3*res.StdDev
	for i := range res.Samples {
		v := res.Samples[i].Value
		res.Samples[i].Flagged = v > res.UCL || v < res.LCL
	}

	res.MovingRanges = make([]model.MovingRangePoint, 0, len(samples)-1)
	var mrSum float64
	for i := 1; i < len(samples); i++ {
		mr := math.Abs(samples[i].Value - samples[i-1].Value)
		mrSum += mr
		res.MovingRanges = append(res.MovingRanges, model.MovingRangePoint{
			RecordLabel: samples[i].RecordLabel,
			Value:       mr,
		})
	}
	res.MeanMR = mrSum / float64(len(res.MovingRanges))
	res.UCLR = d4SubgroupTwo * res.MeanMR
	for i := range res.MovingRanges {
		res.MovingRanges[i].Flagged = res.MovingRanges[i].Value > res.UCLR
	}

	return res
}

// CollectSamples applies the selection rule for cross-record
// aggregation: records in the given order contribute at most one value
// for the criterion — the first matching numeric item in stored order —
// and records with no matching numeric value are skipped entirely.
func CollectSamples(criterionID string, records []model.Record) []model.Sample {
	var samples []model.Sample
	for _, rec := range records {
		for _, it := range rec.Items {
			if it.CriterionID != criterionID || it.NumericValue == nil {
				continue
			}
			samples = append(samples, model.Sample{
				RecordLabel: rec.RecordNumber,
				MeasuredAt:  rec.EffectiveDate(),
				Value:       *it.NumericValue,
			})
			break
		}
	}
	return samples
}
