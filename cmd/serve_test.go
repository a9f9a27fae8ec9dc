package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

type serveFixture struct {
	store     store.Store
	criterion *model.Criterion
	template  *model.Template
	record    *model.Record
}

func newServeFixture(t *testing.T) *serveFixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	std := &model.Standard{Code: "ISO-9001", Name: "Quality Management", Version: "2015", Active: true}
	require.NoError(t, st.CreateStandard(ctx, std))

	lo, hi := 6.5, 7.5
	c := &model.Criterion{
		StandardID:      std.ID,
		Code:            "PH",
		Title:           "pH level",
		DataType:        model.DataTypeNumeric,
		Severity:        model.SeverityMajor,
		RequirementType: model.RequirementMandatory,
		LimitMin:        &lo,
		LimitMax:        &hi,
		Unit:            "pH",
		Active:          true,
	}
	require.NoError(t, st.CreateCriterion(ctx, c))

	tpl := &model.Template{
		Code:       "QC-CHEM-01",
		Name:       "Chemical QC",
		StandardID: std.ID,
		Version:    "1.0",
		Active:     true,
		Fields: []model.TemplateField{
			{CriterionID: c.ID, Required: true, Visible: true, SortOrder: 1},
		},
	}
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	v1, v2 := 7.0, 7.2
	rec := &model.Record{
		RecordNumber: model.NewRecordNumber(time.Now()),
		TemplateID:   tpl.ID,
		StandardID:   std.ID,
		Status:       model.RecordStatusSubmitted,
		Department:   "lab",
		Items: []model.MeasurementItem{
			{CriterionID: c.ID, RawValue: "7.0", NumericValue: &v1, Compliance: model.CompliancePass, MeasuredAt: time.Now()},
			{CriterionID: c.ID, RawValue: "7.2", NumericValue: &v2, Compliance: model.CompliancePass, MeasuredAt: time.Now()},
		},
	}
	require.NoError(t, st.CreateRecord(ctx, rec))

	return &serveFixture{store: st, criterion: c, template: tpl, record: rec}
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestServeHealth(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServeListRecords(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/records?department=lab")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Records []model.Record `json:"records"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, fx.record.RecordNumber, resp.Records[0].RecordNumber)
}

func TestServeListRecordsBadLimit(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/records?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeListRecordsBadDate(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/records?from=not-a-date")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeGetRecord(t *testing.T) {
	fx := newServeFixture(t)
	router := newRouter(fx.store, []string{"*"})

	rr := doGet(t, router, "/records/"+fx.record.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	var rec model.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, fx.record.ID, rec.ID)
	assert.Len(t, rec.Items, 2)
	require.NotNil(t, rec.Overall)
	assert.True(t, *rec.Overall)
}

func TestServeGetRecordNotFound(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/records/missing-id")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "record not found")
}

func TestServeSummaryReport(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/reports/summary")

	require.Equal(t, http.StatusOK, rr.Code)
	var sum struct {
		TotalRecords int     `json:"total_records"`
		Passed       int     `json:"passed"`
		PassRate     float64 `json:"pass_rate"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.TotalRecords)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 100.0, sum.PassRate)
}

func TestServeStatisticalReport(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/reports/statistical/"+fx.template.ID)

	require.Equal(t, http.StatusOK, rr.Code)
	var rep struct {
		TemplateID  string `json:"template_id"`
		RecordCount int    `json:"record_count"`
		Results     []struct {
			Insufficient bool `json:"insufficient"`
			SampleCount  int  `json:"sample_count"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, fx.template.ID, rep.TemplateID)
	assert.Equal(t, 1, rep.RecordCount)
	require.Len(t, rep.Results, 1)
	// One record contributes one sample per criterion, below the
	// two-sample minimum.
	assert.True(t, rep.Results[0].Insufficient)
}

func TestServeStatisticalReportUnknownTemplate(t *testing.T) {
	fx := newServeFixture(t)
	rr := doGet(t, newRouter(fx.store, []string{"*"}), "/reports/statistical/unknown")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
