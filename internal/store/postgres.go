package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brightline-qa/qms-cli/internal/compliance"
	"github.com/brightline-qa/qms-cli/internal/db"
	"github.com/brightline-qa/qms-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_record":           `SELECT ` + recordColumns + ` FROM records WHERE id = $1`,
	"get_items_for_record": `SELECT id, record_id, criterion_id, value, numeric_value, compliance, deviation, remarks, measured_at, measured_by FROM record_items WHERE record_id = $1 ORDER BY seq`,
	"update_record_status": `UPDATE records SET status = $1, updated_at = $2, completed_at = COALESCE(completed_at, $3) WHERE id = $4`,
	"get_criterion":        `SELECT ` + criterionColumns + ` FROM criteria WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS standards (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS criteria (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	standard_id       TEXT NOT NULL REFERENCES standards(id),
	code              TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	data_type         TEXT NOT NULL,
	requirement_type  TEXT NOT NULL DEFAULT 'mandatory',
	limit_min         DOUBLE PRECISION,
	limit_max         DOUBLE PRECISION,
	unit              TEXT NOT NULL DEFAULT '',
	severity          TEXT NOT NULL DEFAULT 'minor',
	acceptable_values JSONB,
	sort_order        INTEGER NOT NULL DEFAULT 0,
	active            BOOLEAN NOT NULL DEFAULT true,
	UNIQUE(standard_id, code)
);

CREATE TABLE IF NOT EXISTS templates (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	standard_id TEXT NOT NULL REFERENCES standards(id),
	category    TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '1.0',
	description TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS template_fields (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	template_id  TEXT NOT NULL REFERENCES templates(id),
	criterion_id TEXT NOT NULL REFERENCES criteria(id),
	required     BOOLEAN NOT NULL DEFAULT true,
	visible      BOOLEAN NOT NULL DEFAULT true,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	compliance_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	overall_compliance BOOLEAN,
	failed_items_count INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS record_items (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id     TEXT NOT NULL REFERENCES records(id),
	criterion_id  TEXT NOT NULL REFERENCES criteria(id),
	value         TEXT NOT NULL DEFAULT '',
	numeric_value DOUBLE PRECISION,
	compliance    TEXT NOT NULL DEFAULT 'unknown',
	deviation     DOUBLE PRECISION NOT NULL DEFAULT 0,
	remarks       TEXT NOT NULL DEFAULT '',
	measured_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	measured_by   TEXT NOT NULL DEFAULT '',
	seq           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS non_conformances (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	customer_impact   BOOLEAN NOT NULL DEFAULT false,
	cost_impact       DOUBLE PRECISION NOT NULL DEFAULT 0,
	detected_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	target_closure_at TIMESTAMPTZ,
	closed_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_criteria_standard ON criteria(standard_id);
CREATE INDEX IF NOT EXISTS idx_template_fields_template ON template_fields(template_id);
CREATE INDEX IF NOT EXISTS idx_records_template ON records(template_id);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_record_items_record ON record_items(record_id);
CREATE INDEX IF NOT EXISTS idx_record_items_criterion ON record_items(criterion_id);
CREATE INDEX IF NOT EXISTS idx_nc_status ON non_conformances(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- standards and criteria ---

func (s *PostgresStore) CreateStandard(ctx context.Context, std *model.Standard) error {
	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO standards (id, code, name, version, description, industry, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		std.ID, std.Code, std.Name, std.Version, std.Description, std.Industry, std.Active,
	)
	return eris.Wrapf(err, "postgres: insert standard %s", std.Code)
}

func (s *PostgresStore) GetStandardByCode(ctx context.Context, code string) (*model.Standard, error) {
	var std model.Standard
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, version, description, industry, active
		 FROM standards WHERE code = $1`, code,
	).Scan(&std.ID, &std.Code, &std.Name, &std.Version, &std.Description, &std.Industry, &std.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get standard %s", code)
	}
	std.Criteria, err = s.GetCriteriaForStandard(ctx, std.ID)
	if err != nil {
		return nil, err
	}
	return &std, nil
}

func (s *PostgresStore) ListStandards(ctx context.Context) ([]model.Standard, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, name, version, description, industry, active
		 FROM standards ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list standards")
	}
	defer rows.Close()

	var out []model.Standard
	for rows.Next() {
		var std model.Standard
		if err := rows.Scan(&std.ID, &std.Code, &std.Name, &std.Version,
			&std.Description, &std.Industry, &std.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan standard")
		}
		out = append(out, std)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list standards iterate")
}

func (s *PostgresStore) CreateCriterion(ctx context.Context, c *model.Criterion) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	acceptable, err := marshalAcceptableJSON(c.AcceptableValues)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO criteria (id, standard_id, code, title, description, data_type,
		 requirement_type, limit_min, limit_max, unit, severity, acceptable_values, sort_order, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.StandardID, c.Code, c.Title, c.Description, string(c.DataType),
		string(c.RequirementType), c.LimitMin, c.LimitMax, c.Unit, string(c.Severity),
		acceptable, c.SortOrder, c.Active,
	)
	return eris.Wrapf(err, "postgres: insert criterion %s", c.Code)
}

var criterionUpsertCols = []string{"id", "standard_id", "code", "title", "description", "data_type",
	"requirement_type", "limit_min", "limit_max", "unit", "severity",
	"acceptable_values", "sort_order", "active"}

// criterionUpdateCols leaves out id along with the conflict keys so a
// re-import refreshes existing rows without re-keying them.
var criterionUpdateCols = []string{"title", "description", "data_type", "requirement_type",
	"limit_min", "limit_max", "unit", "severity", "acceptable_values", "sort_order", "active"}

// CreateCriteria bulk-loads criteria through a temp table so a re-run
// of the same import refreshes rows instead of failing on duplicates.
func (s *PostgresStore) CreateCriteria(ctx context.Context, criteria []model.Criterion) error {
	if len(criteria) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(criteria))
	for i := range criteria {
		c := &criteria[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		acceptable, err := marshalAcceptableJSON(c.AcceptableValues)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			c.ID, c.StandardID, c.Code, c.Title, c.Description, string(c.DataType),
			string(c.RequirementType), c.LimitMin, c.LimitMax, c.Unit, string(c.Severity),
			acceptable, c.SortOrder, c.Active,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "criteria",
		Columns:      criterionUpsertCols,
		ConflictKeys: []string{"standard_id", "code"},
		UpdateCols:   criterionUpdateCols,
	}, rows)
	return err
}

func (s *PostgresStore) GetCriterion(ctx context.Context, id string) (*model.Criterion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+criterionColumns+` FROM criteria WHERE id = $1`, id,
	)
	c, err := scanCriterionPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("criterion not found: %s", id)
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) GetCriteriaForStandard(ctx context.Context, standardID string) ([]model.Criterion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+criterionColumns+` FROM criteria
		 WHERE standard_id = $1 ORDER BY sort_order, code`, standardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list criteria")
	}
	defer rows.Close()

	var out []model.Criterion
	for rows.Next() {
		c, err := scanCriterionPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list criteria iterate")
}

// --- templates ---

func (s *PostgresStore) CreateTemplate(ctx context.Context, tpl *model.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO templates (id, code, name, standard_id, category, version, description, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tpl.ID, tpl.Code, tpl.Name, tpl.StandardID, tpl.Category, tpl.Version, tpl.Description, tpl.Active,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert template %s", tpl.Code)
	}
	for i := range tpl.Fields {
		f := &tpl.Fields[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.TemplateID = tpl.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO template_fields (id, template_id, criterion_id, required, visible, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			f.ID, f.TemplateID, f.CriterionID, f.Required, f.Visible, f.SortOrder,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert template field %d", i)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit template")
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	return s.getTemplate(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetTemplateByCode(ctx context.Context, code string) (*model.Template, error) {
	return s.getTemplate(ctx, `code = $1`, code)
}

func (s *PostgresStore) getTemplate(ctx context.Context, where, arg string) (*model.Template, error) {
	var tpl model.Template
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, standard_id, category, version, description, active
		 FROM templates WHERE `+where, arg,
	).Scan(&tpl.ID, &tpl.Code, &tpl.Name, &tpl.StandardID, &tpl.Category,
		&tpl.Version, &tpl.Description, &tpl.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get template %s", arg)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, template_id, criterion_id, required, visible, sort_order
		 FROM template_fields WHERE template_id = $1 ORDER BY sort_order`, tpl.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get template fields")
	}
	defer rows.Close()
	for rows.Next() {
		var f model.TemplateField
		if err := rows.Scan(&f.ID, &f.TemplateID, &f.CriterionID, &f.Required, &f.Visible, &f.SortOrder); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template field")
		}
		tpl.Fields = append(tpl.Fields, f)
	}
	return &tpl, eris.Wrap(rows.Err(), "postgres: template fields iterate")
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, name, standard_id, category, version, description, active
		 FROM templates ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var tpl model.Template
		if err := rows.Scan(&tpl.ID, &tpl.Code, &tpl.Name, &tpl.StandardID, &tpl.Category,
			&tpl.Version, &tpl.Description, &tpl.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		out = append(out, tpl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

// --- records ---

var itemColumns = []string{"id", "record_id", "criterion_id", "value", "numeric_value",
	"compliance", "deviation", "remarks", "measured_at", "measured_by", "seq"}

func itemRow(it *model.MeasurementItem, seq int) []any {
	return []any{it.ID, it.RecordID, it.CriterionID, it.RawValue, it.NumericValue,
		string(it.Compliance), it.Deviation, it.Remarks, it.MeasuredAt, it.MeasuredBy, seq}
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.Record) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO records (id, record_number, template_id, standard_id, title, status,
		 batch_number, product_id, location, department, operator, notes,
		 compliance_score, overall_compliance, failed_items_count, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.RecordNumber, rec.TemplateID, rec.StandardID, rec.Title, string(rec.Status),
		rec.BatchNumber, rec.ProductID, rec.Location, rec.Department, rec.Operator, rec.Notes,
		rec.Score, rec.Overall, rec.FailedCount, rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert record %s", rec.RecordNumber)
	}

	rows := make([][]any, 0, len(rec.Items))
	for i := range rec.Items {
		it := &rec.Items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		it.RecordID = rec.ID
		if it.MeasuredAt.IsZero() {
			it.MeasuredAt = rec.CreatedAt
		}
		rows = append(rows, itemRow(it, i))
	}
	_, err = db.CopyFrom(ctx, s.pool, "record_items", itemColumns, rows)
	return err
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, id,
	)
	rec, err := scanRecordPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Items, err = s.GetItemsForRecord(ctx, rec.ID)
	return rec, err
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TemplateID != "" {
		query += fmt.Sprintf(` AND template_id = $%d`, argIdx)
		args = append(args, filter.TemplateID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Department != "" {
		query += fmt.Sprintf(` AND department = $%d`, argIdx)
		args = append(args, filter.Department)
		argIdx++
	}
	if filter.Range.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, *filter.Range.From)
		argIdx++
	}
	if filter.Range.To != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, argIdx)
		args = append(args, *filter.Range.To)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecordPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) GetRecordsForTemplate(ctx context.Context, templateID string, rng DateRange) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE template_id = $1`
	args := []any{templateID}
	argIdx := 2
	if rng.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, *rng.From)
		argIdx++
	}
	if rng.To != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, argIdx)
		args = append(args, *rng.To)
	}
	query += ` ORDER BY COALESCE(completed_at, created_at), record_number`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: records for template")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecordPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: records for template iterate")
	}

	for i := range out {
		out[i].Items, err = s.GetItemsForRecord(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) GetItemsForRecord(ctx context.Context, recordID string) ([]model.MeasurementItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, criterion_id, value, numeric_value, compliance,
		 deviation, remarks, measured_at, measured_by
		 FROM record_items WHERE record_id = $1 ORDER BY seq`, recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: items for record")
	}
	defer rows.Close()

	var out []model.MeasurementItem
	for rows.Next() {
		var it model.MeasurementItem
		if err := rows.Scan(&it.ID, &it.RecordID, &it.CriterionID, &it.RawValue,
			&it.NumericValue, &it.Compliance, &it.Deviation, &it.Remarks,
			&it.MeasuredAt, &it.MeasuredBy); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: items iterate")
}

func (s *PostgresStore) AddItems(ctx context.Context, recordID string, items []model.MeasurementItem) error {
	rec, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("record not found: %s", recordID)
	}

	base := len(rec.Items)
	rows := make([][]any, 0, len(items))
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		it.RecordID = recordID
		if it.MeasuredAt.IsZero() {
			it.MeasuredAt = time.Now().UTC()
		}
		rows = append(rows, itemRow(it, base+i))
	}
	if _, err := db.CopyFrom(ctx, s.pool, "record_items", itemColumns, rows); err != nil {
		return err
	}

	sum := compliance.Summarize(append(rec.Items, items...))
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET compliance_score = $1, overall_compliance = $2,
		 failed_items_count = $3, updated_at = $4 WHERE id = $5`,
		sum.Score, sum.Overall, sum.Failed, time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record summary %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", recordID)
	}
	return nil
}

func (s *PostgresStore) UpdateRecordStatus(ctx context.Context, recordID string, status model.RecordStatus) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if status == model.RecordStatusApproved || status == model.RecordStatusRejected {
		completedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, updated_at = $2,
		 completed_at = COALESCE(completed_at, $3) WHERE id = $4`,
		string(status), now, completedAt, recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record status %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", recordID)
	}
	return nil
}

// --- non-conformances ---

func (s *PostgresStore) CreateNonConformance(ctx context.Context, nc *model.NonConformance) error {
	if nc.ID == "" {
		nc.ID = uuid.New().String()
	}
	if nc.Status == "" {
		nc.Status = model.NCStatusOpen
	}
	if nc.DetectedAt.IsZero() {
		nc.DetectedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO non_conformances (id, nc_number, record_id, item_id, title, description,
		 severity, category, root_cause, corrective_action, status, customer_impact, cost_impact,
		 detected_at, target_closure_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		nc.ID, nc.NCNumber, nc.RecordID, nc.ItemID, nc.Title, nc.Description,
		string(nc.Severity), nc.Category, nc.RootCause, nc.CorrectiveAction, string(nc.Status),
		nc.CustomerImpact, nc.CostImpact, nc.DetectedAt, nc.TargetClosureAt, nc.ClosedAt,
	)
	return eris.Wrapf(err, "postgres: insert nc %s", nc.NCNumber)
}

func (s *PostgresStore) ListNonConformances(ctx context.Context, filter NCFilter) ([]model.NonConformance, error) {
	query := `SELECT id, nc_number, record_id, item_id, title, description, severity, category,
		root_cause, corrective_action, status, customer_impact, cost_impact,
		detected_at, target_closure_at, closed_at
		FROM non_conformances WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(` AND severity = $%d`, argIdx)
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if filter.Range.From != nil {
		query += fmt.Sprintf(` AND detected_at >= $%d`, argIdx)
		args = append(args, *filter.Range.From)
		argIdx++
	}
	if filter.Range.To != nil {
		query += fmt.Sprintf(` AND detected_at <= $%d`, argIdx)
		args = append(args, *filter.Range.To)
		argIdx++
	}
	query += ` ORDER BY detected_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ncs")
	}
	defer rows.Close()

	var out []model.NonConformance
	for rows.Next() {
		var nc model.NonConformance
		if err := rows.Scan(&nc.ID, &nc.NCNumber, &nc.RecordID, &nc.ItemID, &nc.Title,
			&nc.Description, &nc.Severity, &nc.Category, &nc.RootCause, &nc.CorrectiveAction,
			&nc.Status, &nc.CustomerImpact, &nc.CostImpact, &nc.DetectedAt,
			&nc.TargetClosureAt, &nc.ClosedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan nc")
		}
		out = append(out, nc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list ncs iterate")
}

func (s *PostgresStore) CloseNonConformance(ctx context.Context, id string, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE non_conformances SET status = $1, closed_at = $2 WHERE id = $3`,
		string(model.NCStatusClosed), closedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: close nc %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("non-conformance not found: %s", id)
	}
	return nil
}

// --- scan helpers ---

func scanRecordPG(row pgx.Row) (*model.Record, error) {
	var rec model.Record
	err := row.Scan(&rec.ID, &rec.RecordNumber, &rec.TemplateID, &rec.StandardID,
		&rec.Title, &rec.Status, &rec.BatchNumber, &rec.ProductID, &rec.Location,
		&rec.Department, &rec.Operator, &rec.Notes, &rec.Score, &rec.Overall,
		&rec.FailedCount, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan record")
	}
	return &rec, nil
}

func scanCriterionPG(row pgx.Row) (*model.Criterion, error) {
	var c model.Criterion
	var acceptable []byte
	err := row.Scan(&c.ID, &c.StandardID, &c.Code, &c.Title, &c.Description, &c.DataType,
		&c.RequirementType, &c.LimitMin, &c.LimitMax, &c.Unit, &c.Severity,
		&acceptable, &c.SortOrder, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan criterion")
	}
	if len(acceptable) > 0 {
		if err := json.Unmarshal(acceptable, &c.AcceptableValues); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal acceptable values for %s", c.Code)
		}
	}
	return &c, nil
}

func marshalAcceptableJSON(values []string) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, eris.Wrap(err, "marshal acceptable values")
	}
	return b, nil
}
