package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/export"
	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

var (
	recordImportFile     string
	recordImportTemplate string
	recordImportMeta     export.FormMeta

	recordListTemplate   string
	recordListStatus     string
	recordListDepartment string
	recordListFrom       string
	recordListTo         string
	recordListLimit      int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Manage inspection records",
}

var recordImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a filled inspection form",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tpl, err := resolveTemplate(ctx, st, recordImportTemplate)
		if err != nil {
			return err
		}
		criteria, err := st.GetCriteriaForStandard(ctx, tpl.StandardID)
		if err != nil {
			return err
		}

		rec, err := export.ImportFilledForm(recordImportFile, tpl, criteria, recordImportMeta)
		if err != nil {
			return err
		}
		if err := st.CreateRecord(ctx, rec); err != nil {
			return err
		}

		zap.L().Info("record imported",
			zap.String("record_number", rec.RecordNumber),
			zap.String("template", tpl.Code),
			zap.Int("items", len(rec.Items)),
			zap.Float64("score", rec.Score),
		)
		fmt.Printf("%s  score=%.2f  failed=%d\n", rec.RecordNumber, rec.Score, rec.FailedCount)
		return nil
	},
}

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rng, err := parseRange(recordListFrom, recordListTo)
		if err != nil {
			return err
		}
		filter := store.RecordFilter{
			Status:     model.RecordStatus(recordListStatus),
			Department: recordListDepartment,
			Range:      rng,
			Limit:      recordListLimit,
		}
		if recordListTemplate != "" {
			tpl, err := resolveTemplate(ctx, st, recordListTemplate)
			if err != nil {
				return err
			}
			filter.TemplateID = tpl.ID
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tSTATUS\tSCORE\tOVERALL\tFAILED\tDEPARTMENT\tCREATED")
		for _, r := range records {
			overall := "-"
			if r.Overall != nil {
				if *r.Overall {
					overall = "pass"
				} else {
					overall = "fail"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\t%s\t%s\n",
				r.RecordNumber, r.Status, r.Score, overall, r.FailedCount,
				r.Department, r.CreatedAt.Format(dateLayout))
		}
		return w.Flush()
	},
}

var recordShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record with its measurements",
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
		return printJSON(rec)
	},
}

func init() {
	recordImportCmd.Flags().StringVar(&recordImportFile, "file", "", "filled form (.xlsx, required)")
	_ = recordImportCmd.MarkFlagRequired("file")
	recordImportCmd.Flags().StringVar(&recordImportTemplate, "template", "", "template code or ID (required)")
	_ = recordImportCmd.MarkFlagRequired("template")
	recordImportCmd.Flags().StringVar(&recordImportMeta.Title, "title", "", "record title")
	recordImportCmd.Flags().StringVar(&recordImportMeta.BatchNumber, "batch", "", "batch number")
	recordImportCmd.Flags().StringVar(&recordImportMeta.ProductID, "product", "", "product identifier")
	recordImportCmd.Flags().StringVar(&recordImportMeta.Location, "location", "", "inspection location")
	recordImportCmd.Flags().StringVar(&recordImportMeta.Department, "department", "", "department")
	recordImportCmd.Flags().StringVar(&recordImportMeta.Operator, "operator", "", "operator identity")
	recordImportCmd.Flags().StringVar(&recordImportMeta.Notes, "notes", "", "free-form notes")

	recordListCmd.Flags().StringVar(&recordListTemplate, "template", "", "filter by template code or ID")
	recordListCmd.Flags().StringVar(&recordListStatus, "status", "", "filter by status")
	recordListCmd.Flags().StringVar(&recordListDepartment, "department", "", "filter by department")
	recordListCmd.Flags().StringVar(&recordListFrom, "from", "", "start date (YYYY-MM-DD)")
	recordListCmd.Flags().StringVar(&recordListTo, "to", "", "end date (YYYY-MM-DD)")
	recordListCmd.Flags().IntVar(&recordListLimit, "limit", 50, "maximum rows")

	recordCmd.AddCommand(recordImportCmd)
	recordCmd.AddCommand(recordListCmd)
	recordCmd.AddCommand(recordShowCmd)
	rootCmd.AddCommand(recordCmd)
}
