package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/export"
	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/templatedef"
)

var (
	templateImportFile string
	templateFormRef    string
	templateFormOut    string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage inspection templates",
}

var templateImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a template definition (YAML)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		def, err := templatedef.Load(templateImportFile)
		if err != nil {
			return err
		}
		if def.Template == nil {
			return eris.Errorf("%s defines no template", templateImportFile)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := templatedef.Apply(ctx, st, def); err != nil {
			return err
		}
		zap.L().Info("template imported",
			zap.String("file", templateImportFile),
			zap.String("template", def.Template.Code),
		)
		return nil
	},
}

var templateExportFormCmd = &cobra.Command{
	Use:   "export-form",
	Short: "Write a blank fillable form for a template",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tpl, err := resolveTemplate(ctx, st, templateFormRef)
		if err != nil {
			return err
		}

		all, err := st.GetCriteriaForStandard(ctx, tpl.StandardID)
		if err != nil {
			return err
		}
		byID := make(map[string]model.Criterion, len(all))
		for _, c := range all {
			byID[c.ID] = c
		}

		// Form rows follow the template's field order; hidden fields
		// stay off the form.
		var criteria []model.Criterion
		for _, f := range tpl.Fields {
			if !f.Visible {
				continue
			}
			if c, ok := byID[f.CriterionID]; ok {
				criteria = append(criteria, c)
			}
		}

		out := templateFormOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, tpl.Code+"_form.xlsx")
		}
		if err := export.ExportTemplateForm(out, tpl, criteria); err != nil {
			return err
		}
		zap.L().Info("form exported",
			zap.String("template", tpl.Code),
			zap.String("path", out),
			zap.Int("criteria", len(criteria)),
		)
		fmt.Println(out)
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		templates, err := st.ListTemplates(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tCATEGORY\tVERSION\tFIELDS\tACTIVE")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n", t.Code, t.Name, t.Category, t.Version, len(t.Fields), t.Active)
		}
		return w.Flush()
	},
}

func init() {
	templateImportCmd.Flags().StringVar(&templateImportFile, "file", "", "template definition YAML file (required)")
	_ = templateImportCmd.MarkFlagRequired("file")
	templateExportFormCmd.Flags().StringVar(&templateFormRef, "template", "", "template code or ID (required)")
	_ = templateExportFormCmd.MarkFlagRequired("template")
	templateExportFormCmd.Flags().StringVar(&templateFormOut, "out", "", "output path (default <export dir>/<code>_form.xlsx)")
	templateCmd.AddCommand(templateImportCmd)
	templateCmd.AddCommand(templateExportFormCmd)
	templateCmd.AddCommand(templateListCmd)
	rootCmd.AddCommand(templateCmd)
}
