package model

import (
	"github.com/rotisserie/eris"
)

// DataType describes how a criterion's raw value is interpreted.
type DataType string

const (
	DataTypeNumeric     DataType = "numeric"
	DataTypeBoolean     DataType = "boolean"
	DataTypeSelect      DataType = "select"
	DataTypeMultiSelect DataType = "multiselect"
	DataTypeText        DataType = "text"
)

// ValidDataTypes lists every data type the evaluator understands.
var ValidDataTypes = []DataType{
	DataTypeNumeric, DataTypeBoolean, DataTypeSelect, DataTypeMultiSelect, DataTypeText,
}

// Severity grades how serious a failure against a criterion is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// RequirementType describes whether a criterion must be measured.
type RequirementType string

const (
	RequirementMandatory   RequirementType = "mandatory"
	RequirementConditional RequirementType = "conditional"
	RequirementOptional    RequirementType = "optional"
)

// Criterion defines one measurable inspection attribute within a standard.
// Limits apply to numeric criteria only; a nil limit means unbounded on
// that side. AcceptableValues is the allow-list for select/multiselect.
type Criterion struct {
	ID               string          `json:"id"`
	StandardID       string          `json:"standard_id"`
	Code             string          `json:"code"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	DataType         DataType        `json:"data_type"`
	RequirementType  RequirementType `json:"requirement_type"`
	LimitMin         *float64        `json:"limit_min,omitempty"`
	LimitMax         *float64        `json:"limit_max,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	Severity         Severity        `json:"severity"`
	AcceptableValues []string        `json:"acceptable_values,omitempty"`
	SortOrder        int             `json:"sort_order"`
	Active           bool            `json:"active"`
}

// Validate checks structural invariants before a criterion is stored.
func (c *Criterion) Validate() error {
	if c.Code == "" {
		return eris.New("criterion: code is required")
	}
	if c.Title == "" {
		return eris.Errorf("criterion %s: title is required", c.Code)
	}
	valid := false
	for _, dt := range ValidDataTypes {
		if c.DataType == dt {
			valid = true
			break
		}
	}
	if !valid {
		return eris.Errorf("criterion %s: unknown data type %q", c.Code, c.DataType)
	}
	if c.DataType != DataTypeNumeric && (c.LimitMin != nil || c.LimitMax != nil) {
		return eris.Errorf("criterion %s: limits only apply to numeric criteria", c.Code)
	}
	if c.LimitMin != nil && c.LimitMax != nil && *c.LimitMin > *c.LimitMax {
		return eris.Errorf("criterion %s: lower limit %v exceeds upper limit %v",
			c.Code, *c.LimitMin, *c.LimitMax)
	}
	return nil
}

// Standard is a named inspection standard owning a set of criteria.
type Standard struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	Industry    string      `json:"industry,omitempty"`
	Active      bool        `json:"active"`
	Criteria    []Criterion `json:"criteria,omitempty"`
}

// Template is an inspection form referencing a standard's criteria in
// a fixed order.
type Template struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	StandardID  string          `json:"standard_id"`
	Category    string          `json:"category,omitempty"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Fields      []TemplateField `json:"fields,omitempty"`
	Active      bool            `json:"active"`
}

// TemplateField places one criterion on a template.
type TemplateField struct {
	ID          string `json:"id"`
	TemplateID  string `json:"template_id"`
	CriterionID string `json:"criterion_id"`
	Required    bool   `json:"required"`
	Visible     bool   `json:"visible"`
	SortOrder   int    `json:"sort_order"`
}
