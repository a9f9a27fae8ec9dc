package report

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rotisserie/eris"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/spc"
	"github.com/brightline-qa/qms-cli/internal/store"
)

// maxAggregationConcurrency bounds the per-criterion fan-out.
const maxAggregationConcurrency = 4

// StatisticalReport holds control-chart statistics for every numeric
// criterion a template measures.
type StatisticalReport struct {
	TemplateID   string                     `json:"template_id"`
	TemplateName string                     `json:"template_name"`
	GeneratedAt  time.Time                  `json:"generated_at"`
	RecordCount  int                        `json:"record_count"`
	Results      []*model.AggregationResult `json:"results"`
}

// Statistical aggregates every numeric criterion of a template across
// its records. Criteria without enough samples appear in Results with
// Insufficient set rather than failing the report.
func (b *Builder) Statistical(ctx context.Context, templateID string, rng store.DateRange) (*StatisticalReport, error) {
	tpl, err := b.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, eris.Errorf("report: template not found: %s", templateID)
	}

	records, err := b.store.GetRecordsForTemplate(ctx, templateID, rng)
	if err != nil {
		return nil, err
	}

	var criteria []model.Criterion
	for _, f := range tpl.Fields {
		c, err := b.store.GetCriterion(ctx, f.CriterionID)
		if err != nil {
			return nil, err
		}
		if c.DataType == model.DataTypeNumeric {
			criteria = append(criteria, *c)
		}
	}

	results := make([]*model.AggregationResult, len(criteria))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxAggregationConcurrency)
	for i, c := range criteria {
		g.Go(func() error {
			samples := spc.CollectSamples(c.ID, records)
			results[i] = spc.Aggregate(c, samples)
			if results[i].Insufficient {
				zap.L().Debug("insufficient samples for criterion",
					zap.String("criterion", c.Code),
					zap.Int("samples", results[i].SampleCount))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Criterion.Code < results[j].Criterion.Code
	})

	return &StatisticalReport{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		GeneratedAt:  time.Now().UTC(),
		RecordCount:  len(records),
		Results:      results,
	}, nil
}
