package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/compliance"
	"github.com/brightline-qa/qms-cli/internal/model"
)

// ImportCriteria parses a criteria sheet into model objects bound to
// standardID. Expected columns: Code, Title, Description, Type, Min,
// Max, Unit, Severity; only Code, Title and Type are required. The
// caller persists the result through the store.
func ImportCriteria(path string, standardID string) ([]model.Criterion, error) {
	rows, header, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	col := indexColumns(header)
	for _, required := range []string{"Code", "Title", "Type"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("export: import criteria: missing required column %q", required)
		}
	}

	var out []model.Criterion
	for i, row := range rows {
		code := cellAt(row, colIdx(col, "Code"))
		if code == "" {
			continue
		}
		c := model.Criterion{
			StandardID:      standardID,
			Code:            code,
			Title:           cellAt(row, colIdx(col, "Title")),
			Description:     cellAt(row, colIdx(col, "Description")),
			DataType:        model.DataType(strings.ToLower(cellAt(row, colIdx(col, "Type")))),
			RequirementType: model.RequirementMandatory,
			Unit:            cellAt(row, colIdx(col, "Unit")),
			Severity:        model.SeverityMinor,
			SortOrder:       i,
			Active:          true,
		}
		if sev := strings.ToLower(cellAt(row, colIdx(col, "Severity"))); sev != "" {
			c.Severity = model.Severity(sev)
		}
		c.LimitMin = parseLimit(cellAt(row, colIdx(col, "Min")))
		c.LimitMax = parseLimit(cellAt(row, colIdx(col, "Max")))
		if err := c.Validate(); err != nil {
			return nil, eris.Wrapf(err, "export: import criteria row %d", i+2)
		}
		out = append(out, c)
	}
	return out, nil
}

// FormMeta carries operator-supplied record fields for a filled-form
// import.
type FormMeta struct {
	Title       string
	BatchNumber string
	ProductID   string
	Location    string
	Department  string
	Operator    string
	Notes       string
}

// ImportFilledForm parses a filled template form back into a record.
// Each criterion row's Value cell is evaluated against the criterion;
// an explicit Compliance cell overrides the evaluation. Rows with an
// unknown code are skipped with a warning, and a malformed value never
// aborts the import (the item just stays unknown).
func ImportFilledForm(path string, tpl *model.Template, criteria []model.Criterion, meta FormMeta) (*model.Record, error) {
	rows, _, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]model.Criterion, len(criteria))
	for _, c := range criteria {
		byCode[c.Code] = c
	}

	now := time.Now().UTC()
	rec := &model.Record{
		RecordNumber: model.NewRecordNumber(now),
		TemplateID:   tpl.ID,
		StandardID:   tpl.StandardID,
		Status:       model.RecordStatusDraft,
		Title:        meta.Title,
		BatchNumber:  meta.BatchNumber,
		ProductID:    meta.ProductID,
		Location:     meta.Location,
		Department:   meta.Department,
		Operator:     meta.Operator,
		Notes:        meta.Notes,
		CreatedAt:    now,
	}

	// Locate the criterion table: everything below the header row. The
	// Title check keeps the "Code: <template code>" info row from
	// matching.
	var col map[string]int
	inTable := false
	for _, row := range rows {
		if !inTable {
			if cellAt(row, 0) == "Code" && cellAt(row, 1) == "Title" {
				col = indexColumns(row)
				inTable = true
			}
			continue
		}
		code := cellAt(row, colIdx(col, "Code"))
		if code == "" {
			continue
		}
		c, ok := byCode[code]
		if !ok {
			zap.L().Warn("form row references unknown criterion", zap.String("code", code))
			continue
		}

		raw := cellAt(row, colIdx(col, "Value"))
		ev := compliance.Evaluate(c, raw)
		if override, ok := parseComplianceCell(cellAt(row, colIdx(col, "Compliance"))); ok {
			ev = compliance.EvaluateOverride(override)
			ev.NumericValue = parseLimit(raw)
		}

		rec.Items = append(rec.Items, model.MeasurementItem{
			CriterionID:  c.ID,
			RawValue:     raw,
			NumericValue: ev.NumericValue,
			Compliance:   ev.Compliance,
			Deviation:    ev.Deviation,
			Remarks:      cellAt(row, colIdx(col, "Remarks")),
			MeasuredAt:   now,
			MeasuredBy:   meta.Operator,
		})
	}
	if !inTable {
		return nil, eris.Errorf("export: %s has no criterion table (header row starting with Code)", path)
	}

	compliance.Summarize(rec.Items).Apply(rec)
	return rec, nil
}

// readFirstSheet returns the first sheet's rows as strings, split into
// header and body.
func readFirstSheet(path string) (rows [][]string, header []string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "export: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("export: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	all := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		all = append(all, cells)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

// indexColumns maps header names to their column index.
func indexColumns(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		if h != "" {
			out[h] = i
		}
	}
	return out
}

// colIdx returns the index of a named column, or -1 when absent.
func colIdx(col map[string]int, name string) int {
	if i, ok := col[name]; ok {
		return i
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseLimit(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseComplianceCell interprets an explicit Compliance cell. The
// second return reports whether the cell held a recognized token.
func parseComplianceCell(s string) (pass bool, ok bool) {
	switch strings.ToLower(s) {
	case "pass", "yes", "true", "1":
		return true, true
	case "fail", "no", "false", "0":
		return false, true
	}
	return false, false
}
