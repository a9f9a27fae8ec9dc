package templatedef

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline-qa/qms-cli/internal/store"
)

const sampleDef = `
standard:
  code: ISO-9001
  name: Quality Management
  version: "2015"
criteria:
  - code: PH
    title: pH level
    type: numeric
    min: 6.5
    max: 7.5
    unit: pH
    severity: major
  - code: COLOR
    title: Color grade
    type: select
    acceptable_values: [clear, pale, amber]
template:
  code: QC-CHEM-01
  name: Chemical QC
  category: chemical
  fields:
    - criterion: PH
    - criterion: COLOR
      required: false
`

func writeDef(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "def.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	def, err := Load(writeDef(t, sampleDef))
	require.NoError(t, err)

	assert.Equal(t, "ISO-9001", def.Standard.Code)
	require.Len(t, def.Criteria, 2)
	assert.Equal(t, "PH", def.Criteria[0].Code)
	require.NotNil(t, def.Criteria[0].Min)
	assert.Equal(t, 6.5, *def.Criteria[0].Min)
	assert.Equal(t, []string{"clear", "pale", "amber"}, def.Criteria[1].AcceptableValues)
	require.NotNil(t, def.Template)
	require.Len(t, def.Template.Fields, 2)
	require.NotNil(t, def.Template.Fields[1].Required)
	assert.False(t, *def.Template.Fields[1].Required)
}

func TestLoad_RejectsDuplicateCodes(t *testing.T) {
	_, err := Load(writeDef(t, `
standard: {code: S, name: S}
criteria:
  - {code: PH, title: a, type: numeric}
  - {code: PH, title: b, type: numeric}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate criterion code")
}

func TestLoad_RejectsUnknownDataType(t *testing.T) {
	_, err := Load(writeDef(t, `
standard: {code: S, name: S}
criteria:
  - {code: PH, title: a, type: gauge}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown data type")
}

func TestLoad_RejectsInvertedLimits(t *testing.T) {
	_, err := Load(writeDef(t, `
standard: {code: S, name: S}
criteria:
  - {code: PH, title: a, type: numeric, min: 9, max: 1}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds upper limit")
}

func TestLoad_RejectsUnknownFieldCriterion(t *testing.T) {
	_, err := Load(writeDef(t, `
standard: {code: S, name: S}
criteria:
  - {code: PH, title: a, type: numeric}
template:
  code: T
  name: T
  fields:
    - criterion: NOPE
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown criterion")
}

func TestApply_SeedsStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	def, err := Load(writeDef(t, sampleDef))
	require.NoError(t, err)
	require.NoError(t, Apply(ctx, st, def))

	std, err := st.GetStandardByCode(ctx, "ISO-9001")
	require.NoError(t, err)
	require.NotNil(t, std)
	require.Len(t, std.Criteria, 2)

	tpl, err := st.GetTemplateByCode(ctx, "QC-CHEM-01")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	require.Len(t, tpl.Fields, 2)
	assert.True(t, tpl.Fields[0].Required)
	assert.False(t, tpl.Fields[1].Required)

	// Field criterion IDs resolve to stored criteria.
	c, err := st.GetCriterion(ctx, tpl.Fields[0].CriterionID)
	require.NoError(t, err)
	assert.Equal(t, "PH", c.Code)
}

func TestApply_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	def, err := Load(writeDef(t, sampleDef))
	require.NoError(t, err)
	require.NoError(t, Apply(ctx, st, def))
	require.NoError(t, Apply(ctx, st, def))

	std, err := st.GetStandardByCode(ctx, "ISO-9001")
	require.NoError(t, err)
	require.Len(t, std.Criteria, 2)

	templates, err := st.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}
