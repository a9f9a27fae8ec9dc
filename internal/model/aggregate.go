package model

import "time"

// Sample is one numeric measurement contributing to an aggregation,
// tagged with the record it came from. Samples are ordered by the
// originating record's effective date.
type Sample struct {
	RecordLabel string    `json:"record_label"`
	MeasuredAt  time.Time `json:"measured_at"`
	Value       float64   `json:"value"`
	// Flagged marks the point as outside the control limits. Flagged
	// points stay in the statistics; renderers draw them distinctly.
	Flagged bool `json:"flagged"`
}

// MovingRangePoint is |v_i - v_{i-1}| between consecutive samples.
type MovingRangePoint struct {
	RecordLabel string  `json:"record_label"`
	Value       float64 `json:"value"`
	Flagged     bool    `json:"flagged"`
}

// AggregationResult holds descriptive statistics and control-chart
// parameters for one criterion across a set of records. It is computed
// on demand for a report and never persisted. When Insufficient is
// true (fewer than two contributing samples) every other field except
// Criterion and SampleCount is zero and must not be rendered.
type AggregationResult struct {
	Criterion    Criterion          `json:"criterion"`
	Insufficient bool               `json:"insufficient"`
	SampleCount  int                `json:"sample_count"`
	Mean         float64            `json:"mean"`
	StdDev       float64            `json:"std_dev"`
	Range        float64            `json:"range"`
	Min          float64            `json:"min"`
	Max          float64            `json:"max"`
	UCL          float64            `json:"ucl"`
	LCL          float64            `json:"lcl"`
	Samples      []Sample           `json:"samples,omitempty"`
	MovingRanges []MovingRangePoint `json:"moving_ranges,omitempty"`
	MeanMR       float64            `json:"mean_mr"`
	UCLR         float64            `json:"ucl_r"`
}
