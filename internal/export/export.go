// Package export reads and writes inspection data as xlsx workbooks.
// Layouts follow the forms quality teams already exchange: a records
// overview sheet, a two-sheet record detail, a blank fillable template
// form and a statistical report.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/report"
)

const timeLayout = "2006-01-02 15:04"

// recordsHeaders is the column set of the records overview sheet.
var recordsHeaders = []string{
	"Record Number", "Title", "Template", "Status",
	"Completed Date", "Batch Number", "Product ID",
	"Location", "Department", "Operator",
	"Compliance Score", "Failed Items", "Overall Compliance", "Notes",
}

// ExportRecords writes a one-row-per-record overview sheet.
// templateNames maps template ID to display name.
func ExportRecords(path string, records []model.Record, templateNames map[string]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Records")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStringRow(sheet, recordsHeaders...)
	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.RecordNumber)
		row.AddCell().SetString(rec.Title)
		row.AddCell().SetString(templateNames[rec.TemplateID])
		row.AddCell().SetString(string(rec.Status))
		row.AddCell().SetString(formatTimePtr(rec.CompletedAt))
		row.AddCell().SetString(rec.BatchNumber)
		row.AddCell().SetString(rec.ProductID)
		row.AddCell().SetString(rec.Location)
		row.AddCell().SetString(rec.Department)
		row.AddCell().SetString(rec.Operator)
		row.AddCell().SetFloatWithFormat(rec.Score, "0.00")
		row.AddCell().SetInt(rec.FailedCount)
		row.AddCell().SetString(formatOverall(rec.Overall))
		row.AddCell().SetString(rec.Notes)
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// ExportRecordDetail writes one record as a Summary sheet plus an
// Items sheet with every measurement.
func ExportRecordDetail(path string, rec *model.Record, tpl *model.Template, criteria map[string]model.Criterion) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	tplName := ""
	if tpl != nil {
		tplName = tpl.Name
	}
	for _, kv := range [][2]string{
		{"Record Number", rec.RecordNumber},
		{"Title", rec.Title},
		{"Template", tplName},
		{"Status", string(rec.Status)},
		{"Batch Number", rec.BatchNumber},
		{"Product ID", rec.ProductID},
		{"Location", rec.Location},
		{"Department", rec.Department},
		{"Operator", rec.Operator},
		{"Completed Date", formatTimePtr(rec.CompletedAt)},
		{"Overall Compliance", formatOverall(rec.Overall)},
		{"Compliance Score", fmt.Sprintf("%.2f%%", rec.Score)},
		{"Failed Items", strconv.Itoa(rec.FailedCount)},
		{"Notes", rec.Notes},
	} {
		addStringRow(summary, kv[0], kv[1])
	}

	items, err := f.AddSheet("Items")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addStringRow(items,
		"Criteria Code", "Criteria Title", "Value", "Numeric Value",
		"Compliance", "Deviation", "Unit", "Remarks", "Measured At", "Measured By")
	for _, it := range rec.Items {
		c := criteria[it.CriterionID]
		row := items.AddRow()
		row.AddCell().SetString(c.Code)
		row.AddCell().SetString(c.Title)
		row.AddCell().SetString(it.RawValue)
		if it.NumericValue != nil {
			row.AddCell().SetFloat(*it.NumericValue)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(string(it.Compliance))
		row.AddCell().SetFloat(it.Deviation)
		row.AddCell().SetString(c.Unit)
		row.AddCell().SetString(it.Remarks)
		row.AddCell().SetString(it.MeasuredAt.Format(timeLayout))
		row.AddCell().SetString(it.MeasuredBy)
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// formHeaders is the criterion table header of the fillable form. The
// filled-form importer locates this row by its first cell.
var formHeaders = []string{
	"Code", "Title", "Description", "Type", "Required",
	"Min", "Max", "Unit", "Value", "Compliance", "Remarks",
}

// ExportTemplateForm writes a blank form for a template: four info
// rows, a spacer, the criterion header, then one row per field with
// the Value, Compliance and Remarks columns left empty.
func ExportTemplateForm(path string, tpl *model.Template, criteria []model.Criterion) error {
	f := xlsx.NewFile()
	name := tpl.Name
	if len(name) > 31 {
		name = name[:31] // sheet name limit
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStringRow(sheet, "Template", tpl.Name)
	addStringRow(sheet, "Code", tpl.Code)
	addStringRow(sheet, "Description", tpl.Description)
	addStringRow(sheet, "Category", tpl.Category)
	sheet.AddRow()
	addStringRow(sheet, formHeaders...)

	required := map[string]bool{}
	for _, fld := range tpl.Fields {
		required[fld.CriterionID] = fld.Required
	}
	for _, c := range criteria {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Code)
		row.AddCell().SetString(c.Title)
		row.AddCell().SetString(c.Description)
		row.AddCell().SetString(string(c.DataType))
		row.AddCell().SetString(yesNo(required[c.ID]))
		row.AddCell().SetString(formatLimit(c.LimitMin))
		row.AddCell().SetString(formatLimit(c.LimitMax))
		row.AddCell().SetString(c.Unit)
		row.AddCell().SetString("") // Value
		row.AddCell().SetString("") // Compliance
		row.AddCell().SetString("") // Remarks
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// ExportStatisticalReport writes one Overview sheet plus a sheet per
// criterion carrying the sample and moving-range series.
func ExportStatisticalReport(path string, rep *report.StatisticalReport) error {
	f := xlsx.NewFile()

	overview, err := f.AddSheet("Overview")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addStringRow(overview, "Template", rep.TemplateName)
	addStringRow(overview, "Generated", rep.GeneratedAt.Format(timeLayout))
	addStringRow(overview, "Records", strconv.Itoa(rep.RecordCount))
	overview.AddRow()
	addStringRow(overview,
		"Code", "Title", "Samples", "Mean", "Std Dev", "Range",
		"Min", "Max", "UCL", "LCL", "Mean MR", "UCL R", "Status")
	for _, res := range rep.Results {
		row := overview.AddRow()
		row.AddCell().SetString(res.Criterion.Code)
		row.AddCell().SetString(res.Criterion.Title)
		row.AddCell().SetInt(res.SampleCount)
		if res.Insufficient {
			for i := 0; i < 9; i++ {
				row.AddCell().SetString("")
			}
			row.AddCell().SetString("insufficient data")
			continue
		}
		row.AddCell().SetFloat(res.Mean)
		row.AddCell().SetFloat(res.StdDev)
		row.AddCell().SetFloat(res.Range)
		row.AddCell().SetFloat(res.Min)
		row.AddCell().SetFloat(res.Max)
		row.AddCell().SetFloat(res.UCL)
		row.AddCell().SetFloat(res.LCL)
		row.AddCell().SetFloat(res.MeanMR)
		row.AddCell().SetFloat(res.UCLR)
		row.AddCell().SetString("ok")
	}

	for _, res := range rep.Results {
		if res.Insufficient {
			continue
		}
		name := res.Criterion.Code
		if len(name) > 31 {
			name = name[:31]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}
		addStringRow(sheet, "Record", "Measured At", "Value", "Out Of Control", "Moving Range", "MR Out Of Control")
		for i, s := range res.Samples {
			row := sheet.AddRow()
			row.AddCell().SetString(s.RecordLabel)
			row.AddCell().SetString(s.MeasuredAt.Format(timeLayout))
			row.AddCell().SetFloat(s.Value)
			row.AddCell().SetString(yesNo(s.Flagged))
			if i == 0 {
				row.AddCell().SetString("")
				row.AddCell().SetString("")
				continue
			}
			mr := res.MovingRanges[i-1]
			row.AddCell().SetFloat(mr.Value)
			row.AddCell().SetString(yesNo(mr.Flagged))
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addStringRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func formatOverall(overall *bool) string {
	switch {
	case overall == nil:
		return ""
	case *overall:
		return "Pass"
	default:
		return "Fail"
	}
}

func formatLimit(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
