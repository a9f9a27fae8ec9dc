package compliance

import (
	"math"

	"github.com/brightline-qa/qms-cli/internal/model"
)

// Summary is the derived compliance state of a record's item set.
type Summary struct {
	Passed int
	Failed int
	// Total counts only items with a definite outcome; unknowns are
	// excluded from the denominator.
	Total int
	// Score is the pass percentage over Total, 0 when Total is 0.
	Score float64
	// Overall is nil until at least one item is evaluable, then true
	// iff no item failed.
	Overall *bool
}

// Summarize derives the record summary from its item set. It is
// idempotent: the same item set always yields the same summary.
func Summarize(items []model.MeasurementItem) Summary {
	var s Summary
	for _, it := range items {
		switch it.Compliance {
		case model.CompliancePass:
			s.Passed++
		case model.ComplianceFail:
			s.Failed++
		}
	}
	s.Total = s.Passed + s.Failed
	if s.Total > 0 {
		s.Score = float64(s.Passed) / float64(s.Total) * 100
		overall := s.Failed == 0
		s.Overall = &overall
	}
	return s
}

// Apply writes the summary back onto the record.
func (s Summary) Apply(r *model.Record) {
	r.Score = s.Score
	r.Overall = s.Overall
	r.FailedCount = s.Failed
}

// RoundScore rounds a compliance score to two decimals for rendering.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
