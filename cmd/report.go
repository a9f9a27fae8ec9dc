package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/export"
	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/report"
	"github.com/brightline-qa/qms-cli/internal/store"
)

var (
	reportFrom string
	reportTo   string

	reportSummaryTemplate   string
	reportSummaryStatus     string
	reportSummaryDepartment string

	reportTrendTemplate string
	reportTrendPeriod   string

	reportFailuresTemplate string
	reportFailuresTop      int

	reportNCOverdue bool

	reportPerformanceBy string

	reportStatTemplate string
	reportStatOut      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compliance, trend and control-chart reports",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Pass/fail summary over a filtered record set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}
		filter := store.RecordFilter{
			Status:     model.RecordStatus(reportSummaryStatus),
			Department: reportSummaryDepartment,
			Range:      rng,
		}
		if reportSummaryTemplate != "" {
			tpl, err := resolveTemplate(ctx, st, reportSummaryTemplate)
			if err != nil {
				return err
			}
			filter.TemplateID = tpl.ID
		}

		sum, err := report.NewBuilder(st).ComplianceSummary(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

var reportTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Pass rate and average score bucketed by period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		period, err := report.ParsePeriod(reportTrendPeriod)
		if err != nil {
			return err
		}
		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tpl, err := resolveTemplate(ctx, st, reportTrendTemplate)
		if err != nil {
			return err
		}
		trend, err := report.NewBuilder(st).Trend(ctx, tpl.ID, rng, period)
		if err != nil {
			return err
		}
		return printJSON(trend)
	},
}

var reportFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Criteria ranked by failed measurements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tpl, err := resolveTemplate(ctx, st, reportFailuresTemplate)
		if err != nil {
			return err
		}
		failures, err := report.NewBuilder(st).TopFailures(ctx, tpl.ID, rng, reportFailuresTop)
		if err != nil {
			return err
		}
		return printJSON(failures)
	},
}

var reportNCCmd = &cobra.Command{
	Use:   "nc",
	Short: "Non-conformance summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		b := report.NewBuilder(st)
		if reportNCOverdue {
			overdue, err := b.OverdueNCs(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(overdue)
		}
		sum, err := b.NCSummary(ctx, rng)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

var reportPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Pass rate and average score by department or operator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		perf, err := report.NewBuilder(st).Performance(ctx, reportPerformanceBy, rng)
		if err != nil {
			return err
		}
		return printJSON(perf)
	},
}

var reportStatisticalCmd = &cobra.Command{
	Use:   "statistical",
	Short: "Control-chart statistics for a template's numeric criteria",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rng, err := parseRange(reportFrom, reportTo)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tpl, err := resolveTemplate(ctx, st, reportStatTemplate)
		if err != nil {
			return err
		}
		rep, err := report.NewBuilder(st).Statistical(ctx, tpl.ID, rng)
		if err != nil {
			return err
		}

		if reportStatOut == "" {
			return printJSON(rep)
		}

		out := reportStatOut
		if !filepath.IsAbs(out) {
			out = filepath.Join(cfg.Export.Dir, out)
		}
		if err := export.ExportStatisticalReport(out, rep); err != nil {
			return err
		}
		zap.L().Info("statistical report exported",
			zap.String("template", tpl.Code),
			zap.String("path", out),
			zap.Int("criteria", len(rep.Results)),
		)
		fmt.Println(out)
		return nil
	},
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportFrom, "from", "", "start date (YYYY-MM-DD)")
	reportCmd.PersistentFlags().StringVar(&reportTo, "to", "", "end date (YYYY-MM-DD)")

	reportSummaryCmd.Flags().StringVar(&reportSummaryTemplate, "template", "", "filter by template code or ID")
	reportSummaryCmd.Flags().StringVar(&reportSummaryStatus, "status", "", "filter by record status")
	reportSummaryCmd.Flags().StringVar(&reportSummaryDepartment, "department", "", "filter by department")

	reportTrendCmd.Flags().StringVar(&reportTrendTemplate, "template", "", "template code or ID (required)")
	_ = reportTrendCmd.MarkFlagRequired("template")
	reportTrendCmd.Flags().StringVar(&reportTrendPeriod, "period", "month", "bucket period: day, week, month or year")

	reportFailuresCmd.Flags().StringVar(&reportFailuresTemplate, "template", "", "template code or ID (required)")
	_ = reportFailuresCmd.MarkFlagRequired("template")
	reportFailuresCmd.Flags().IntVar(&reportFailuresTop, "top", 10, "number of criteria to list")

	reportNCCmd.Flags().BoolVar(&reportNCOverdue, "overdue", false, "list unclosed NCs past their target closure date")

	reportPerformanceCmd.Flags().StringVar(&reportPerformanceBy, "by", "department", "group by department or operator")

	reportStatisticalCmd.Flags().StringVar(&reportStatTemplate, "template", "", "template code or ID (required)")
	_ = reportStatisticalCmd.MarkFlagRequired("template")
	reportStatisticalCmd.Flags().StringVar(&reportStatOut, "out", "", "write .xlsx to this path instead of printing JSON")

	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportTrendCmd)
	reportCmd.AddCommand(reportFailuresCmd)
	reportCmd.AddCommand(reportNCCmd)
	reportCmd.AddCommand(reportPerformanceCmd)
	reportCmd.AddCommand(reportStatisticalCmd)
	rootCmd.AddCommand(reportCmd)
}
