package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-qa/qms-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func numericCriterion(lo, hi *float64) model.Criterion {
	return model.Criterion{
		Code:     "DIM-01",
		Title:    "Diameter",
		DataType: model.DataTypeNumeric,
		LimitMin: lo,
		LimitMax: hi,
	}
}

func TestEvaluate_NumericWithinLimits(t *testing.T) {
	c := numericCriterion(f(99.5), f(100.5))

	ev := Evaluate(c, "100.0")
	require.NotNil(t, ev.NumericValue)
	assert.Equal(t, 100.0, *ev.NumericValue)
	assert.Equal(t, model.CompliancePass, ev.Compliance)
	assert.Zero(t, ev.Deviation)
}

func TestEvaluate_NumericDeviationSign(t *testing.T) {
	c := numericCriterion(f(99.5), f(100.5))

	tests := []struct {
		name      string
		raw       string
		want      model.Compliance
		deviation float64
	}{
		{"below lower", "99.0", model.ComplianceFail, -0.5},
		{"above upper", "100.6", model.ComplianceFail, 0.1},
		{"at lower", "99.5", model.CompliancePass, 0},
		{"at upper", "100.5", model.CompliancePass, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(c, tt.raw)
			assert.Equal(t, tt.want, ev.Compliance)
			assert.InDelta(t, tt.deviation, ev.Deviation, 1e-9)
		})
	}
}

func TestEvaluate_NumericUnbounded(t *testing.T) {
	// Only a lower limit: anything at or above it passes.
	c := numericCriterion(f(10), nil)
	assert.Equal(t, model.CompliancePass, Evaluate(c, "1000000").Compliance)
	assert.Equal(t, model.ComplianceFail, Evaluate(c, "9.99").Compliance)

	// No limits at all: every parsable value passes.
	open := numericCriterion(nil, nil)
	assert.Equal(t, model.CompliancePass, Evaluate(open, "-273.15").Compliance)
}

func TestEvaluate_NumericUnparsable(t *testing.T) {
	c := numericCriterion(f(0), f(1))

	ev := Evaluate(c, "about three")
	assert.Equal(t, model.ComplianceUnknown, ev.Compliance)
	assert.Nil(t, ev.NumericValue)
	assert.Zero(t, ev.Deviation)
}

func TestEvaluate_Boolean(t *testing.T) {
	c := model.Criterion{Code: "VIS-01", Title: "Surface OK", DataType: model.DataTypeBoolean}

	for _, raw := range []string{"yes", "true", "1", "YES", " True "} {
		assert.Equal(t, model.CompliancePass, Evaluate(c, raw).Compliance, raw)
	}
	for _, raw := range []string{"no", "false", "0", "No"} {
		assert.Equal(t, model.ComplianceFail, Evaluate(c, raw).Compliance, raw)
	}
	for _, raw := range []string{"", "maybe", "2"} {
		assert.Equal(t, model.ComplianceUnknown, Evaluate(c, raw).Compliance, raw)
	}
}

func TestEvaluate_Select(t *testing.T) {
	c := model.Criterion{
		Code:             "MAT-01",
		Title:            "Material grade",
		DataType:         model.DataTypeSelect,
		AcceptableValues: []string{"A", "B"},
	}

	assert.Equal(t, model.CompliancePass, Evaluate(c, "A").Compliance)
	assert.Equal(t, model.CompliancePass, Evaluate(c, "b").Compliance)
	assert.Equal(t, model.ComplianceFail, Evaluate(c, "C").Compliance)
}

func TestEvaluate_MultiSelect(t *testing.T) {
	c := model.Criterion{
		Code:             "CRT-01",
		Title:            "Certifications",
		DataType:         model.DataTypeMultiSelect,
		AcceptableValues: []string{"iso9001", "iso14001", "ce"},
	}

	assert.Equal(t, model.CompliancePass, Evaluate(c, "iso9001, ce").Compliance)
	// One unacceptable option fails the whole selection.
	assert.Equal(t, model.ComplianceFail, Evaluate(c, "iso9001, rohs").Compliance)
	assert.Equal(t, model.ComplianceUnknown, Evaluate(c, "").Compliance)
}

func TestEvaluate_SelectNoAllowList(t *testing.T) {
	c := model.Criterion{Code: "S", Title: "s", DataType: model.DataTypeSelect}
	assert.Equal(t, model.ComplianceUnknown, Evaluate(c, "anything").Compliance)
}

func TestEvaluate_Text(t *testing.T) {
	c := model.Criterion{Code: "NOTE-01", Title: "Observations", DataType: model.DataTypeText}
	assert.Equal(t, model.ComplianceUnknown, Evaluate(c, "looks fine").Compliance)

	assert.Equal(t, model.CompliancePass, EvaluateOverride(true).Compliance)
	assert.Equal(t, model.ComplianceFail, EvaluateOverride(false).Compliance)
}
