package model

import "time"

// NewRecordNumber derives a record number from a timestamp, e.g.
// REC-20260115103000.
func NewRecordNumber(t time.Time) string {
	return "REC-" + t.Format("20060102150405")
}

// RecordStatus is the lifecycle state of an inspection record.
type RecordStatus string

const (
	RecordStatusDraft       RecordStatus = "draft"
	RecordStatusSubmitted   RecordStatus = "submitted"
	RecordStatusUnderReview RecordStatus = "under_review"
	RecordStatusApproved    RecordStatus = "approved"
	RecordStatusRejected    RecordStatus = "rejected"
)

// Compliance is the tri-state outcome of evaluating one measurement.
type Compliance string

const (
	CompliancePass    Compliance = "pass"
	ComplianceFail    Compliance = "fail"
	ComplianceUnknown Compliance = "unknown"
)

// Record is one inspection instance filled against a template. Score,
// Overall and FailedCount are derived from the item set and recomputed
// whenever it changes; they are never mutated independently.
type Record struct {
	ID           string       `json:"id"`
	RecordNumber string       `json:"record_number"`
	TemplateID   string       `json:"template_id"`
	StandardID   string       `json:"standard_id,omitempty"`
	Title        string       `json:"title,omitempty"`
	Status       RecordStatus `json:"status"`
	BatchNumber  string       `json:"batch_number,omitempty"`
	ProductID    string       `json:"product_id,omitempty"`
	Location     string       `json:"location,omitempty"`
	Department   string       `json:"department,omitempty"`
	Operator     string       `json:"operator,omitempty"`
	Notes        string       `json:"notes,omitempty"`

	// Derived summary over the item set. Overall is nil until at least
	// one item has a definite pass/fail outcome.
	Score       float64 `json:"compliance_score"`
	Overall     *bool   `json:"overall_compliance,omitempty"`
	FailedCount int     `json:"failed_items_count"`

	Items []MeasurementItem `json:"items,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EffectiveDate returns the timestamp used to order a record on charts:
// completion time when present, creation time otherwise.
func (r *Record) EffectiveDate() time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// MeasurementItem is one recorded value against one criterion within a
// record. RawValue is the operator's input as typed; NumericValue is the
// parsed form for numeric criteria. Deviation is signed toward the
// violated bound: negative below the lower limit, positive above the
// upper one, zero on pass.
type MeasurementItem struct {
	ID           string     `json:"id"`
	RecordID     string     `json:"record_id"`
	CriterionID  string     `json:"criterion_id"`
	RawValue     string     `json:"value"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	Compliance   Compliance `json:"compliance"`
	Deviation    float64    `json:"deviation"`
	Remarks      string     `json:"remarks,omitempty"`
	MeasuredAt   time.Time  `json:"measured_at"`
	MeasuredBy   string     `json:"measured_by,omitempty"`
}

// NCStatus is the lifecycle state of a non-conformance.
type NCStatus string

const (
	NCStatusOpen       NCStatus = "open"
	NCStatusInProgress NCStatus = "in_progress"
	NCStatusClosed     NCStatus = "closed"
)

// NonConformance tracks a quality failure raised from a record or item
// through root-cause analysis to closure.
type NonConformance struct {
	ID               string     `json:"id"`
	NCNumber         string     `json:"nc_number"`
	RecordID         string     `json:"record_id,omitempty"`
	ItemID           string     `json:"item_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Severity         Severity   `json:"severity"`
	Category         string     `json:"category,omitempty"`
	RootCause        string     `json:"root_cause,omitempty"`
	CorrectiveAction string     `json:"corrective_action,omitempty"`
	Status           NCStatus   `json:"status"`
	CustomerImpact   bool       `json:"customer_impact"`
	CostImpact       float64    `json:"cost_impact"`
	DetectedAt       time.Time  `json:"detected_at"`
	TargetClosureAt  *time.Time `json:"target_closure_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}
