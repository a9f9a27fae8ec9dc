package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/export"
	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

var (
	exportRecordsOut      string
	exportRecordsTemplate string
	exportRecordsFrom     string
	exportRecordsTo       string

	exportRecordOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records to spreadsheets",
}

var exportRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Export a record listing to .xlsx",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rng, err := parseRange(exportRecordsFrom, exportRecordsTo)
		if err != nil {
			return err
		}
		filter := store.RecordFilter{Range: rng}
		if exportRecordsTemplate != "" {
			tpl, err := resolveTemplate(ctx, st, exportRecordsTemplate)
			if err != nil {
				return err
			}
			filter.TemplateID = tpl.ID
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return err
		}
		templates, err := st.ListTemplates(ctx)
		if err != nil {
			return err
		}
		names := make(map[string]string, len(templates))
		for _, t := range templates {
			names[t.ID] = t.Name
		}

		out := exportRecordsOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, "records_"+time.Now().Format("20060102")+".xlsx")
		}
		if err := export.ExportRecords(out, records, names); err != nil {
			return err
		}
		zap.L().Info("records exported",
			zap.String("path", out),
			zap.Int("records", len(records)),
		)
		fmt.Println(out)
		return nil
	},
}

var exportRecordCmd = &cobra.Command{
	Use:   "record <record-id>",
	Short: "Export one record with its measurements to .xlsx",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("record not found: %s", args[0])
		}
		tpl, err := st.GetTemplate(ctx, rec.TemplateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return eris.Errorf("template not found: %s", rec.TemplateID)
		}

		all, err := st.GetCriteriaForStandard(ctx, tpl.StandardID)
		if err != nil {
			return err
		}
		criteria := make(map[string]model.Criterion, len(all))
		for _, c := range all {
			criteria[c.ID] = c
		}

		out := exportRecordOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, rec.RecordNumber+".xlsx")
		}
		if err := export.ExportRecordDetail(out, rec, tpl, criteria); err != nil {
			return err
		}
		zap.L().Info("record exported",
			zap.String("record_number", rec.RecordNumber),
			zap.String("path", out),
		)
		fmt.Println(out)
		return nil
	},
}

func init() {
	exportRecordsCmd.Flags().StringVar(&exportRecordsOut, "out", "", "output path (default <export dir>/records_<date>.xlsx)")
	exportRecordsCmd.Flags().StringVar(&exportRecordsTemplate, "template", "", "filter by template code or ID")
	exportRecordsCmd.Flags().StringVar(&exportRecordsFrom, "from", "", "start date (YYYY-MM-DD)")
	exportRecordsCmd.Flags().StringVar(&exportRecordsTo, "to", "", "end date (YYYY-MM-DD)")
	exportRecordCmd.Flags().StringVar(&exportRecordOut, "out", "", "output path (default <export dir>/<record number>.xlsx)")
	exportCmd.AddCommand(exportRecordsCmd)
	exportCmd.AddCommand(exportRecordCmd)
	rootCmd.AddCommand(exportCmd)
}
