package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/export"
	"github.com/brightline-qa/qms-cli/internal/templatedef"
)

var (
	standardImportFile string
	standardImportXLSX string
	standardImportCode string
)

var standardCmd = &cobra.Command{
	Use:   "standard",
	Short: "Manage inspection standards and their criteria",
}

var standardImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a standard definition (YAML) or a criteria spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		switch {
		case standardImportFile != "":
			def, err := templatedef.Load(standardImportFile)
			if err != nil {
				return err
			}
			if err := templatedef.Apply(ctx, st, def); err != nil {
				return err
			}
			zap.L().Info("standard definition applied",
				zap.String("file", standardImportFile),
				zap.String("standard", def.Standard.Code),
				zap.Int("criteria", len(def.Criteria)),
			)
			return nil

		case standardImportXLSX != "":
			if standardImportCode == "" {
				return eris.New("--code is required with --xlsx")
			}
			std, err := st.GetStandardByCode(ctx, standardImportCode)
			if err != nil {
				return err
			}
			if std == nil {
				return eris.Errorf("standard not found: %s", standardImportCode)
			}
			criteria, err := export.ImportCriteria(standardImportXLSX, std.ID)
			if err != nil {
				return err
			}
			if err := st.CreateCriteria(ctx, criteria); err != nil {
				return err
			}
			zap.L().Info("criteria imported",
				zap.String("xlsx", standardImportXLSX),
				zap.String("standard", standardImportCode),
				zap.Int("criteria", len(criteria)),
			)
			return nil

		default:
			return eris.New("either --file or --xlsx is required")
		}
	},
}

var standardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List standards",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		standards, err := st.ListStandards(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tVERSION\tINDUSTRY\tACTIVE")
		for _, s := range standards {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", s.Code, s.Name, s.Version, s.Industry, s.Active)
		}
		return w.Flush()
	},
}

func init() {
	standardImportCmd.Flags().StringVar(&standardImportFile, "file", "", "standard definition YAML file")
	standardImportCmd.Flags().StringVar(&standardImportXLSX, "xlsx", "", "criteria spreadsheet (.xlsx)")
	standardImportCmd.Flags().StringVar(&standardImportCode, "code", "", "standard code the spreadsheet criteria belong to")
	standardCmd.AddCommand(standardImportCmd)
	standardCmd.AddCommand(standardListCmd)
	rootCmd.AddCommand(standardCmd)
}
