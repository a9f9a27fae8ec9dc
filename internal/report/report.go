// Package report builds plain-data quality reports from stored records.
// Outputs feed the spreadsheet exporters and the JSON API.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/brightline-qa/qms-cli/internal/compliance"
	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

// Builder runs report queries against a Store.
type Builder struct {
	store store.Store
}

func NewBuilder(st store.Store) *Builder {
	return &Builder{store: st}
}

// ComplianceSummary aggregates pass/fail outcomes over a record set.
type ComplianceSummary struct {
	TotalRecords int            `json:"total_records"`
	Passed       int            `json:"passed"`
	Failed       int            `json:"failed"`
	Pending      int            `json:"pending"`
	PassRate     float64        `json:"pass_rate"`
	AvgScore     float64        `json:"avg_score"`
	ByStatus     map[string]int `json:"by_status"`
	ByDepartment map[string]int `json:"by_department"`
	From         *time.Time     `json:"from,omitempty"`
	To           *time.Time     `json:"to,omitempty"`
}

// ComplianceSummary builds the headline numbers for a filtered record
// set. Records whose overall outcome is still undetermined count as
// pending and stay out of the pass-rate denominator.
func (b *Builder) ComplianceSummary(ctx context.Context, filter store.RecordFilter) (*ComplianceSummary, error) {
	records, err := b.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	sum := &ComplianceSummary{
		ByStatus:     map[string]int{},
		ByDepartment: map[string]int{},
		From:         filter.Range.From,
		To:           filter.Range.To,
	}

	var scoreTotal float64
	for _, rec := range records {
		sum.TotalRecords++
		sum.ByStatus[string(rec.Status)]++
		if rec.Department != "" {
			sum.ByDepartment[rec.Department]++
		}
		scoreTotal += rec.Score
		switch {
		case rec.Overall == nil:
			sum.Pending++
		case *rec.Overall:
			sum.Passed++
		default:
			sum.Failed++
		}
	}

	if decided := sum.Passed + sum.Failed; decided > 0 {
		sum.PassRate = compliance.RoundScore(float64(sum.Passed) / float64(decided) * 100)
	}
	if sum.TotalRecords > 0 {
		sum.AvgScore = compliance.RoundScore(scoreTotal / float64(sum.TotalRecords))
	}
	return sum, nil
}

// CriteriaFailure counts failed measurements against one criterion.
type CriteriaFailure struct {
	CriterionID string  `json:"criterion_id"`
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Severity    string  `json:"severity"`
	Failures    int     `json:"failures"`
	Measured    int     `json:"measured"`
	FailureRate float64 `json:"failure_rate"`
}

// TopFailures ranks criteria by failed measurement count across the
// records of one template.
func (b *Builder) TopFailures(ctx context.Context, templateID string, rng store.DateRange, topN int) ([]CriteriaFailure, error) {
	records, err := b.store.GetRecordsForTemplate(ctx, templateID, rng)
	if err != nil {
		return nil, err
	}

	type tally struct{ failed, measured int }
	counts := map[string]*tally{}
	for _, rec := range records {
		for _, it := range rec.Items {
			t := counts[it.CriterionID]
			if t == nil {
				t = &tally{}
				counts[it.CriterionID] = t
			}
			if it.Compliance != model.ComplianceUnknown {
				t.measured++
			}
			if it.Compliance == model.ComplianceFail {
				t.failed++
			}
		}
	}

	var out []CriteriaFailure
	for id, t := range counts {
		if t.failed == 0 {
			continue
		}
		c, err := b.store.GetCriterion(ctx, id)
		if err != nil {
			return nil, err
		}
		cf := CriteriaFailure{
			CriterionID: id,
			Code:        c.Code,
			Title:       c.Title,
			Severity:    string(c.Severity),
			Failures:    t.failed,
			Measured:    t.measured,
		}
		if t.measured > 0 {
			cf.FailureRate = compliance.RoundScore(float64(t.failed) / float64(t.measured) * 100)
		}
		out = append(out, cf)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Failures != out[j].Failures {
			return out[i].Failures > out[j].Failures
		}
		return out[i].Code < out[j].Code
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// NCSummary aggregates non-conformance state over a period.
type NCSummary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	BySeverity     map[string]int `json:"by_severity"`
	ClosureRate    float64        `json:"closure_rate"`
	AvgClosureDays float64        `json:"avg_closure_days"`
	CustomerImpact int            `json:"customer_impact"`
	TotalCost      float64        `json:"total_cost"`
}

func (b *Builder) NCSummary(ctx context.Context, rng store.DateRange) (*NCSummary, error) {
	ncs, err := b.store.ListNonConformances(ctx, store.NCFilter{Range: rng, Limit: 10000})
	if err != nil {
		return nil, err
	}

	sum := &NCSummary{
		ByStatus:   map[string]int{},
		BySeverity: map[string]int{},
	}
	var closed int
	var closureDays float64
	for _, nc := range ncs {
		sum.Total++
		sum.ByStatus[string(nc.Status)]++
		sum.BySeverity[string(nc.Severity)]++
		if nc.CustomerImpact {
			sum.CustomerImpact++
		}
		sum.TotalCost += nc.CostImpact
		if nc.Status == model.NCStatusClosed && nc.ClosedAt != nil {
			closed++
			closureDays += nc.ClosedAt.Sub(nc.DetectedAt).Hours() / 24
		}
	}
	if sum.Total > 0 {
		sum.ClosureRate = compliance.RoundScore(float64(closed) / float64(sum.Total) * 100)
	}
	if closed > 0 {
		sum.AvgClosureDays = compliance.RoundScore(closureDays / float64(closed))
	}
	return sum, nil
}

// OverdueNC is an unclosed non-conformance past its target closure date.
type OverdueNC struct {
	NCNumber        string    `json:"nc_number"`
	Title           string    `json:"title"`
	Severity        string    `json:"severity"`
	Status          string    `json:"status"`
	TargetClosureAt time.Time `json:"target_closure_at"`
	DaysOverdue     int       `json:"days_overdue"`
}

// OverdueNCs lists open and in-progress non-conformances whose target
// closure date has passed, most overdue first. NCs without a target
// date cannot be overdue and are skipped.
func (b *Builder) OverdueNCs(ctx context.Context, now time.Time) ([]OverdueNC, error) {
	ncs, err := b.store.ListNonConformances(ctx, store.NCFilter{Limit: 10000})
	if err != nil {
		return nil, err
	}

	var out []OverdueNC
	for _, nc := range ncs {
		if nc.Status == model.NCStatusClosed || nc.TargetClosureAt == nil {
			continue
		}
		if !nc.TargetClosureAt.Before(now) {
			continue
		}
		out = append(out, OverdueNC{
			NCNumber:        nc.NCNumber,
			Title:           nc.Title,
			Severity:        string(nc.Severity),
			Status:          string(nc.Status),
			TargetClosureAt: *nc.TargetClosureAt,
			DaysOverdue:     int(now.Sub(*nc.TargetClosureAt).Hours() / 24),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TargetClosureAt.Before(out[j].TargetClosureAt)
	})
	return out, nil
}

// GroupPerformance aggregates record outcomes for one department or
// operator.
type GroupPerformance struct {
	Name     string  `json:"name"`
	Records  int     `json:"records"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
	AvgScore float64 `json:"avg_score"`
}

// Performance groups records by department or operator and reports
// pass rate and average score per group, best average score first.
// Records with an empty group value are left out.
func (b *Builder) Performance(ctx context.Context, by string, rng store.DateRange) ([]GroupPerformance, error) {
	var key func(*model.Record) string
	switch by {
	case "department":
		key = func(r *model.Record) string { return r.Department }
	case "operator":
		key = func(r *model.Record) string { return r.Operator }
	default:
		return nil, eris.Errorf("report: unknown performance grouping %q", by)
	}

	records, err := b.store.ListRecords(ctx, store.RecordFilter{Range: rng, Limit: 10000})
	if err != nil {
		return nil, err
	}

	type tally struct {
		records, passed, failed int
		scoreTotal              float64
	}
	groups := map[string]*tally{}
	for i := range records {
		rec := &records[i]
		name := key(rec)
		if name == "" {
			continue
		}
		g := groups[name]
		if g == nil {
			g = &tally{}
			groups[name] = g
		}
		g.records++
		g.scoreTotal += rec.Score
		switch {
		case rec.Overall == nil:
		case *rec.Overall:
			g.passed++
		default:
			g.failed++
		}
	}

	var out []GroupPerformance
	for name, g := range groups {
		gp := GroupPerformance{
			Name:    name,
			Records: g.records,
			Passed:  g.passed,
			Failed:  g.failed,
		}
		if decided := g.passed + g.failed; decided > 0 {
			gp.PassRate = compliance.RoundScore(float64(g.passed) / float64(decided) * 100)
		}
		gp.AvgScore = compliance.RoundScore(g.scoreTotal / float64(g.records))
		out = append(out, gp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
