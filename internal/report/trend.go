package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/brightline-qa/qms-cli/internal/compliance"
	"github.com/brightline-qa/qms-cli/internal/store"
)

// Period is the bucket width for trend analysis.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod validates a user-supplied period string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), nil
	}
	return "", eris.Errorf("report: unknown period %q (want day, week, month or year)", s)
}

// TrendPoint is one time bucket of the trend report.
type TrendPoint struct {
	Period   string  `json:"period"`
	Records  int     `json:"records"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
	AvgScore float64 `json:"avg_score"`
}

// TrendAnalysis is pass rate and average score bucketed by period.
type TrendAnalysis struct {
	Period Period       `json:"period"`
	Points []TrendPoint `json:"points"`
}

// Trend buckets a template's records by their effective date and
// reports pass rate and average score per bucket, oldest first.
func (b *Builder) Trend(ctx context.Context, templateID string, rng store.DateRange, period Period) (*TrendAnalysis, error) {
	records, err := b.store.GetRecordsForTemplate(ctx, templateID, rng)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		records, passed, failed int
		scoreTotal              float64
	}
	buckets := map[string]*bucket{}
	for _, rec := range records {
		key := bucketKey(rec.EffectiveDate(), period)
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.records++
		bk.scoreTotal += rec.Score
		if rec.Overall != nil {
			if *rec.Overall {
				bk.passed++
			} else {
				bk.failed++
			}
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &TrendAnalysis{Period: period}
	for _, k := range keys {
		bk := buckets[k]
		pt := TrendPoint{
			Period:  k,
			Records: bk.records,
			Passed:  bk.passed,
			Failed:  bk.failed,
		}
		if decided := bk.passed + bk.failed; decided > 0 {
			pt.PassRate = compliance.RoundScore(float64(bk.passed) / float64(decided) * 100)
		}
		pt.AvgScore = compliance.RoundScore(bk.scoreTotal / float64(bk.records))
		out.Points = append(out.Points, pt)
	}
	return out, nil
}

// bucketKey formats a timestamp into a sortable bucket label.
func bucketKey(t time.Time, period Period) string {
	switch period {
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	case PeriodYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}
