package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestCriterionValidate(t *testing.T) {
	valid := Criterion{
		Code:     "PH",
		Title:    "pH level",
		DataType: DataTypeNumeric,
		LimitMin: fptr(6.5),
		LimitMax: fptr(7.5),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(c *Criterion)
		wantErr string
	}{
		{"missing code", func(c *Criterion) { c.Code = "" }, "code is required"},
		{"missing title", func(c *Criterion) { c.Title = "" }, "title is required"},
		{"unknown data type", func(c *Criterion) { c.DataType = "interval" }, "unknown data type"},
		{"limits on text type", func(c *Criterion) { c.DataType = DataTypeText }, "limits only apply to numeric"},
		{"inverted limits", func(c *Criterion) { c.LimitMin = fptr(8); c.LimitMax = fptr(7) }, "exceeds upper limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCriterionValidateOpenBounds(t *testing.T) {
	c := Criterion{Code: "TEMP", Title: "Temperature", DataType: DataTypeNumeric, LimitMin: fptr(2)}
	assert.NoError(t, c.Validate(), "one-sided limits are allowed")

	c = Criterion{Code: "NOTE", Title: "Remarks", DataType: DataTypeText}
	assert.NoError(t, c.Validate(), "no limits at all is fine")
}
