package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/brightline-qa/qms-cli/internal/compliance"
	"github.com/brightline-qa/qms-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS standards (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS criteria (
	id                TEXT PRIMARY KEY,
	standard_id       TEXT NOT NULL REFERENCES standards(id),
	code              TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	data_type         TEXT NOT NULL,
	requirement_type  TEXT NOT NULL DEFAULT 'mandatory',
	limit_min         REAL,
	limit_max         REAL,
	unit              TEXT NOT NULL DEFAULT '',
	severity          TEXT NOT NULL DEFAULT 'minor',
	acceptable_values TEXT,
	sort_order        INTEGER NOT NULL DEFAULT 0,
	active            INTEGER NOT NULL DEFAULT 1,
	UNIQUE(standard_id, code)
);

CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	standard_id TEXT NOT NULL REFERENCES standards(id),
	category    TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '1.0',
	description TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS template_fields (
	id           TEXT PRIMARY KEY,
	template_id  TEXT NOT NULL REFERENCES templates(id),
	criterion_id TEXT NOT NULL REFERENCES criteria(id),
	required     INTEGER NOT NULL DEFAULT 1,
	visible      INTEGER NOT NULL DEFAULT 1,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
	id                 TEXT PRIMARY KEY,
	record_number      TEXT NOT NULL UNIQUE,
	template_id        TEXT NOT NULL REFERENCES templates(id),
	standard_id        TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'draft',
	batch_number       TEXT NOT NULL DEFAULT '',
	product_id         TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	department         TEXT NOT NULL DEFAULT '',
	operator           TEXT NOT NULL DEFAULT '',
	notes              TEXT NOT NULL DEFAULT '',
	compliance_score   REAL NOT NULL DEFAULT 0,
	overall_compliance INTEGER,
	failed_items_count INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS record_items (
	id            TEXT PRIMARY KEY,
	record_id     TEXT NOT NULL REFERENCES records(id),
	criterion_id  TEXT NOT NULL REFERENCES criteria(id),
	value         TEXT NOT NULL DEFAULT '',
	numeric_value REAL,
	compliance    TEXT NOT NULL DEFAULT 'unknown',
	deviation     REAL NOT NULL DEFAULT 0,
	remarks       TEXT NOT NULL DEFAULT '',
	measured_at   DATETIME NOT NULL,
	measured_by   TEXT NOT NULL DEFAULT '',
	seq           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS non_conformances (
	id                TEXT PRIMARY KEY,
	nc_number         TEXT NOT NULL UNIQUE,
	record_id         TEXT NOT NULL DEFAULT '',
	item_id           TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	severity          TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	root_cause        TEXT NOT NULL DEFAULT '',
	corrective_action TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'open',
	customer_impact   INTEGER NOT NULL DEFAULT 0,
	cost_impact       REAL NOT NULL DEFAULT 0,
	detected_at       DATETIME NOT NULL,
	target_closure_at DATETIME,
	closed_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_criteria_standard ON criteria(standard_id);
CREATE INDEX IF NOT EXISTS idx_template_fields_template ON template_fields(template_id);
CREATE INDEX IF NOT EXISTS idx_records_template ON records(template_id);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_record_items_record ON record_items(record_id);
CREATE INDEX IF NOT EXISTS idx_record_items_criterion ON record_items(criterion_id);
CREATE INDEX IF NOT EXISTS idx_nc_status ON non_conformances(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- standards and criteria ---

func (s *SQLiteStore) CreateStandard(ctx context.Context, std *model.Standard) error {
	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO standards (id, code, name, version, description, industry, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		std.ID, std.Code, std.Name, std.Version, std.Description, std.Industry, std.Active,
	)
	return eris.Wrapf(err, "sqlite: insert standard %s", std.Code)
}

func (s *SQLiteStore) GetStandardByCode(ctx context.Context, code string) (*model.Standard, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, version, description, industry, active
		 FROM standards WHERE code = ?`, code,
	)
	var std model.Standard
	err := row.Scan(&std.ID, &std.Code, &std.Name, &std.Version, &std.Description, &std.Industry, &std.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get standard %s", code)
	}
	std.Criteria, err = s.GetCriteriaForStandard(ctx, std.ID)
	if err != nil {
		return nil, err
	}
	return &std, nil
}

func (s *SQLiteStore) ListStandards(ctx context.Context) ([]model.Standard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, version, description, industry, active
		 FROM standards ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list standards")
	}
	defer rows.Close()

	var out []model.Standard
	for rows.Next() {
		var std model.Standard
		if err := rows.Scan(&std.ID, &std.Code, &std.Name, &std.Version,
			&std.Description, &std.Industry, &std.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan standard")
		}
		out = append(out, std)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list standards iterate")
}

func (s *SQLiteStore) CreateCriterion(ctx context.Context, c *model.Criterion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	acceptable, err := marshalAcceptable(c.AcceptableValues)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO criteria (id, standard_id, code, title, description, data_type,
		 requirement_type, limit_min, limit_max, unit, severity, acceptable_values, sort_order, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StandardID, c.Code, c.Title, c.Description, string(c.DataType),
		string(c.RequirementType), c.LimitMin, c.LimitMax, c.Unit, string(c.Severity),
		acceptable, c.SortOrder, c.Active,
	)
	return eris.Wrapf(err, "sqlite: insert criterion %s", c.Code)
}

func (s *SQLiteStore) CreateCriteria(ctx context.Context, criteria []model.Criterion) error {
	if len(criteria) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range criteria {
		c := &criteria[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		acceptable, err := marshalAcceptable(c.AcceptableValues)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO criteria (id, standard_id, code, title, description, data_type,
			 requirement_type, limit_min, limit_max, unit, severity, acceptable_values, sort_order, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(standard_id, code) DO UPDATE SET
			   title = excluded.title, description = excluded.description,
			   data_type = excluded.data_type, requirement_type = excluded.requirement_type,
			   limit_min = excluded.limit_min, limit_max = excluded.limit_max,
			   unit = excluded.unit, severity = excluded.severity,
			   acceptable_values = excluded.acceptable_values,
			   sort_order = excluded.sort_order, active = excluded.active`,
			c.ID, c.StandardID, c.Code, c.Title, c.Description, string(c.DataType),
			string(c.RequirementType), c.LimitMin, c.LimitMax, c.Unit, string(c.Severity),
			acceptable, c.SortOrder, c.Active,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert criterion %s", c.Code)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit criteria")
}

const criterionColumns = `id, standard_id, code, title, description, data_type,
	requirement_type, limit_min, limit_max, unit, severity, acceptable_values, sort_order, active`

func (s *SQLiteStore) GetCriterion(ctx context.Context, id string) (*model.Criterion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+criterionColumns+` FROM criteria WHERE id = ?`, id,
	)
	c, err := scanCriterion(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("criterion not found: %s", id)
	}
	return c, err
}

func (s *SQLiteStore) GetCriteriaForStandard(ctx context.Context, standardID string) ([]model.Criterion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+criterionColumns+` FROM criteria
		 WHERE standard_id = ? ORDER BY sort_order, code`, standardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list criteria")
	}
	defer rows.Close()

	var out []model.Criterion
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list criteria iterate")
}

// --- templates ---

func (s *SQLiteStore) CreateTemplate(ctx context.Context, tpl *model.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, code, name, standard_id, category, version, description, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID, tpl.Code, tpl.Name, tpl.StandardID, tpl.Category, tpl.Version, tpl.Description, tpl.Active,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert template %s", tpl.Code)
	}
	for i := range tpl.Fields {
		f := &tpl.Fields[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.TemplateID = tpl.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO template_fields (id, template_id, criterion_id, required, visible, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.TemplateID, f.CriterionID, f.Required, f.Visible, f.SortOrder,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert template field %d", i)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit template")
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	return s.getTemplate(ctx, `id = ?`, id)
}

func (s *SQLiteStore) GetTemplateByCode(ctx context.Context, code string) (*model.Template, error) {
	return s.getTemplate(ctx, `code = ?`, code)
}

func (s *SQLiteStore) getTemplate(ctx context.Context, where, arg string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, standard_id, category, version, description, active
		 FROM templates WHERE `+where, arg,
	)
	var tpl model.Template
	err := row.Scan(&tpl.ID, &tpl.Code, &tpl.Name, &tpl.StandardID, &tpl.Category,
		&tpl.Version, &tpl.Description, &tpl.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get template %s", arg)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, criterion_id, required, visible, sort_order
		 FROM template_fields WHERE template_id = ? ORDER BY sort_order`, tpl.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get template fields")
	}
	defer rows.Close()
	for rows.Next() {
		var f model.TemplateField
		if err := rows.Scan(&f.ID, &f.TemplateID, &f.CriterionID, &f.Required, &f.Visible, &f.SortOrder); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template field")
		}
		tpl.Fields = append(tpl.Fields, f)
	}
	return &tpl, eris.Wrap(rows.Err(), "sqlite: template fields iterate")
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, standard_id, category, version, description, active
		 FROM templates ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var tpl model.Template
		if err := rows.Scan(&tpl.ID, &tpl.Code, &tpl.Name, &tpl.StandardID, &tpl.Category,
			&tpl.Version, &tpl.Description, &tpl.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		out = append(out, tpl)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list templates iterate")
}

// --- records ---

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.RecordStatusDraft
	}
	compliance.Summarize(rec.Items).Apply(rec)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, record_number, template_id, standard_id, title, status,
		 batch_number, product_id, location, department, operator, notes,
		 compliance_score, overall_compliance, failed_items_count, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RecordNumber, rec.TemplateID, rec.StandardID, rec.Title, string(rec.Status),
		rec.BatchNumber, rec.ProductID, rec.Location, rec.Department, rec.Operator, rec.Notes,
		rec.Score, nullBool(rec.Overall), rec.FailedCount, rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert record %s", rec.RecordNumber)
	}

	for i := range rec.Items {
		if err := insertItemTx(ctx, tx, rec, &rec.Items[i], i); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit record")
}

func insertItemTx(ctx context.Context, tx *sql.Tx, rec *model.Record, it *model.MeasurementItem, seq int) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	it.RecordID = rec.ID
	if it.MeasuredAt.IsZero() {
		it.MeasuredAt = rec.CreatedAt
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO record_items (id, record_id, criterion_id, value, numeric_value,
		 compliance, deviation, remarks, measured_at, measured_by, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.RecordID, it.CriterionID, it.RawValue, it.NumericValue,
		string(it.Compliance), it.Deviation, it.Remarks, it.MeasuredAt, it.MeasuredBy, seq,
	)
	return eris.Wrapf(err, "sqlite: insert item %d for record %s", seq, rec.RecordNumber)
}

const recordColumns = `id, record_number, template_id, standard_id, title, status,
	batch_number, product_id, location, department, operator, notes,
	compliance_score, overall_compliance, failed_items_count, created_at, updated_at, completed_at`

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Items, err = s.GetItemsForRecord(ctx, rec.ID)
	return rec, err
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	var args []any

	if filter.TemplateID != "" {
		query += ` AND template_id = ?`
		args = append(args, filter.TemplateID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Department != "" {
		query += ` AND department = ?`
		args = append(args, filter.Department)
	}
	if filter.Range.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Range.From)
	}
	if filter.Range.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, *filter.Range.To)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) GetRecordsForTemplate(ctx context.Context, templateID string, rng DateRange) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE template_id = ?`
	args := []any{templateID}
	if rng.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, *rng.From)
	}
	if rng.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, *rng.To)
	}
	// Chronological: charts read samples oldest first.
	query += ` ORDER BY COALESCE(completed_at, created_at), record_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: records for template")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: records for template iterate")
	}

	for i := range out {
		out[i].Items, err = s.GetItemsForRecord(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) GetItemsForRecord(ctx context.Context, recordID string) ([]model.MeasurementItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, criterion_id, value, numeric_value, compliance,
		 deviation, remarks, measured_at, measured_by
		 FROM record_items WHERE record_id = ? ORDER BY seq`, recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: items for record")
	}
	defer rows.Close()

	var out []model.MeasurementItem
	for rows.Next() {
		var it model.MeasurementItem
		if err := rows.Scan(&it.ID, &it.RecordID, &it.CriterionID, &it.RawValue,
			&it.NumericValue, &it.Compliance, &it.Deviation, &it.Remarks,
			&it.MeasuredAt, &it.MeasuredBy); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: items iterate")
}

// AddItems appends items to a record and recomputes its derived
// summary in the same transaction.
func (s *SQLiteStore) AddItems(ctx context.Context, recordID string, items []model.MeasurementItem) error {
	rec, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("record not found: %s", recordID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	base := len(rec.Items)
	for i := range items {
		if err := insertItemTx(ctx, tx, rec, &items[i], base+i); err != nil {
			return err
		}
	}

	sum := compliance.Summarize(append(rec.Items, items...))
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET compliance_score = ?, overall_compliance = ?,
		 failed_items_count = ?, updated_at = ? WHERE id = ?`,
		sum.Score, nullBool(sum.Overall), sum.Failed, time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record summary %s", recordID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit items")
}

func (s *SQLiteStore) UpdateRecordStatus(ctx context.Context, recordID string, status model.RecordStatus) error {
	now := time.Now().UTC()
	var completedAt any
	if status == model.RecordStatusApproved || status == model.RecordStatusRejected {
		completedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ?,
		 completed_at = COALESCE(completed_at, ?) WHERE id = ?`,
		string(status), now, completedAt, recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record status %s", recordID)
	}
	return checkRowsAffected(res, "record", recordID)
}

// --- non-conformances ---

func (s *SQLiteStore) CreateNonConformance(ctx context.Context, nc *model.NonConformance) error {
	if nc.ID == "" {
		nc.ID = uuid.New().String()
	}
	if nc.Status == "" {
		nc.Status = model.NCStatusOpen
	}
	if nc.DetectedAt.IsZero() {
		nc.DetectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO non_conformances (id, nc_number, record_id, item_id, title, description,
		 severity, category, root_cause, corrective_action, status, customer_impact, cost_impact,
		 detected_at, target_closure_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nc.ID, nc.NCNumber, nc.RecordID, nc.ItemID, nc.Title, nc.Description,
		string(nc.Severity), nc.Category, nc.RootCause, nc.CorrectiveAction, string(nc.Status),
		nc.CustomerImpact, nc.CostImpact, nc.DetectedAt, nc.TargetClosureAt, nc.ClosedAt,
	)
	return eris.Wrapf(err, "sqlite: insert nc %s", nc.NCNumber)
}

func (s *SQLiteStore) ListNonConformances(ctx context.Context, filter NCFilter) ([]model.NonConformance, error) {
	query := `SELECT id, nc_number, record_id, item_id, title, description, severity, category,
		root_cause, corrective_action, status, customer_impact, cost_impact,
		detected_at, target_closure_at, closed_at
		FROM non_conformances WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.Range.From != nil {
		query += ` AND detected_at >= ?`
		args = append(args, *filter.Range.From)
	}
	if filter.Range.To != nil {
		query += ` AND detected_at <= ?`
		args = append(args, *filter.Range.To)
	}
	query += ` ORDER BY detected_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ncs")
	}
	defer rows.Close()

	var out []model.NonConformance
	for rows.Next() {
		var nc model.NonConformance
		if err := rows.Scan(&nc.ID, &nc.NCNumber, &nc.RecordID, &nc.ItemID, &nc.Title,
			&nc.Description, &nc.Severity, &nc.Category, &nc.RootCause, &nc.CorrectiveAction,
			&nc.Status, &nc.CustomerImpact, &nc.CostImpact, &nc.DetectedAt,
			&nc.TargetClosureAt, &nc.ClosedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nc")
		}
		out = append(out, nc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list ncs iterate")
}

func (s *SQLiteStore) CloseNonConformance(ctx context.Context, id string, closedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE non_conformances SET status = ?, closed_at = ? WHERE id = ?`,
		string(model.NCStatusClosed), closedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: close nc %s", id)
	}
	return checkRowsAffected(res, "non-conformance", id)
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.Record, error) {
	var rec model.Record
	var overall sql.NullBool
	var completedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.RecordNumber, &rec.TemplateID, &rec.StandardID,
		&rec.Title, &rec.Status, &rec.BatchNumber, &rec.ProductID, &rec.Location,
		&rec.Department, &rec.Operator, &rec.Notes, &rec.Score, &overall,
		&rec.FailedCount, &rec.CreatedAt, &rec.UpdatedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan record")
	}
	if overall.Valid {
		rec.Overall = &overall.Bool
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func scanCriterion(row scannable) (*model.Criterion, error) {
	var c model.Criterion
	var acceptable sql.NullString
	err := row.Scan(&c.ID, &c.StandardID, &c.Code, &c.Title, &c.Description, &c.DataType,
		&c.RequirementType, &c.LimitMin, &c.LimitMax, &c.Unit, &c.Severity,
		&acceptable, &c.SortOrder, &c.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan criterion")
	}
	if acceptable.Valid && acceptable.String != "" {
		if err := json.Unmarshal([]byte(acceptable.String), &c.AcceptableValues); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal acceptable values for %s", c.Code)
		}
	}
	return &c, nil
}

func marshalAcceptable(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, eris.Wrap(err, "marshal acceptable values")
	}
	return string(b), nil
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
