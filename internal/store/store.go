// Package store persists standards, templates, inspection records and
// non-conformances. Two backends implement the same interface: a
// file-backed SQLite store for single-user installs and a Postgres
// store for shared deployments. Aggregation reads a snapshot through
// this interface and never writes.
package store

import (
	"context"
	"time"

	"github.com/brightline-qa/qms-cli/internal/model"
)

// DateRange restricts a record query to a time window. A nil bound
// means unbounded on that side.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	TemplateID string
	Status     model.RecordStatus
	Department string
	Range      DateRange
	Limit      int
	Offset     int
}

// NCFilter specifies criteria for listing non-conformances.
type NCFilter struct {
	Status   model.NCStatus
	Severity model.Severity
	Range    DateRange
	Limit    int
}

// Store is the persistence interface of the quality system.
type Store interface {
	// Standards and criteria
	CreateStandard(ctx context.Context, std *model.Standard) error
	GetStandardByCode(ctx context.Context, code string) (*model.Standard, error)
	ListStandards(ctx context.Context) ([]model.Standard, error)
	CreateCriterion(ctx context.Context, c *model.Criterion) error
	// CreateCriteria loads a batch of criteria, replacing rows that
	// collide on (standard, code). Spreadsheet imports go through this.
	CreateCriteria(ctx context.Context, criteria []model.Criterion) error
	GetCriterion(ctx context.Context, id string) (*model.Criterion, error)
	GetCriteriaForStandard(ctx context.Context, standardID string) ([]model.Criterion, error)

	// Templates
	CreateTemplate(ctx context.Context, tpl *model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	GetTemplateByCode(ctx context.Context, code string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)

	// Records. Writes that change a record's item set recompute the
	// derived summary before returning.
	CreateRecord(ctx context.Context, rec *model.Record) error
	// GetRecord returns (nil, nil) when no record has the given id,
	// like the standard and template lookups.
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)
	// GetRecordsForTemplate returns records in chronological order with
	// their items in insertion order, as the aggregation engine expects.
	GetRecordsForTemplate(ctx context.Context, templateID string, rng DateRange) ([]model.Record, error)
	GetItemsForRecord(ctx context.Context, recordID string) ([]model.MeasurementItem, error)
	AddItems(ctx context.Context, recordID string, items []model.MeasurementItem) error
	UpdateRecordStatus(ctx context.Context, recordID string, status model.RecordStatus) error

	// Non-conformances
	CreateNonConformance(ctx context.Context, nc *model.NonConformance) error
	ListNonConformances(ctx context.Context, filter NCFilter) ([]model.NonConformance, error)
	CloseNonConformance(ctx context.Context, id string, closedAt time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
