// Package templatedef loads standard and template definitions from
// YAML files and seeds them into a store. A definition file carries one
// standard, its criteria and optionally one inspection template laid
// out over those criteria.
package templatedef

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

// Definition is the root of a definition file.
type Definition struct {
	Standard StandardDef    `yaml:"standard"`
	Criteria []CriterionDef `yaml:"criteria"`
	Template *TemplateDef   `yaml:"template"`
}

type StandardDef struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Industry    string `yaml:"industry"`
}

type CriterionDef struct {
	Code             string   `yaml:"code"`
	Title            string   `yaml:"title"`
	Description      string   `yaml:"description"`
	Type             string   `yaml:"type"`
	Requirement      string   `yaml:"requirement"`
	Min              *float64 `yaml:"min"`
	Max              *float64 `yaml:"max"`
	Unit             string   `yaml:"unit"`
	Severity         string   `yaml:"severity"`
	AcceptableValues []string `yaml:"acceptable_values"`
}

type TemplateDef struct {
	Code        string     `yaml:"code"`
	Name        string     `yaml:"name"`
	Category    string     `yaml:"category"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Fields      []FieldDef `yaml:"fields"`
}

type FieldDef struct {
	Criterion string `yaml:"criterion"` // criterion code
	Required  *bool  `yaml:"required"`  // default true
	Visible   *bool  `yaml:"visible"`   // default true
}

// Load reads and validates a definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "templatedef: read %s", path)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, eris.Wrapf(err, "templatedef: parse %s", path)
	}
	if err := def.validate(); err != nil {
		return nil, eris.Wrapf(err, "templatedef: %s", path)
	}
	return &def, nil
}

func (d *Definition) validate() error {
	if d.Standard.Code == "" {
		return eris.New("standard.code is required")
	}
	if d.Standard.Name == "" {
		return eris.New("standard.name is required")
	}
	if len(d.Criteria) == 0 {
		return eris.New("at least one criterion is required")
	}

	codes := map[string]bool{}
	for i, cd := range d.Criteria {
		if codes[cd.Code] {
			return eris.Errorf("duplicate criterion code %q", cd.Code)
		}
		codes[cd.Code] = true
		c := cd.toModel("", i)
		if err := c.Validate(); err != nil {
			return err
		}
	}

	if d.Template != nil {
		if d.Template.Code == "" {
			return eris.New("template.code is required")
		}
		for _, f := range d.Template.Fields {
			if !codes[f.Criterion] {
				return eris.Errorf("template field references unknown criterion %q", f.Criterion)
			}
		}
	}
	return nil
}

func (cd CriterionDef) toModel(standardID string, sortOrder int) model.Criterion {
	requirement := model.RequirementType(cd.Requirement)
	if requirement == "" {
		requirement = model.RequirementMandatory
	}
	severity := model.Severity(cd.Severity)
	if severity == "" {
		severity = model.SeverityMinor
	}
	return model.Criterion{
		StandardID:       standardID,
		Code:             cd.Code,
		Title:            cd.Title,
		Description:      cd.Description,
		DataType:         model.DataType(cd.Type),
		RequirementType:  requirement,
		LimitMin:         cd.Min,
		LimitMax:         cd.Max,
		Unit:             cd.Unit,
		Severity:         severity,
		SortOrder:        sortOrder,
		AcceptableValues: cd.AcceptableValues,
		Active:           true,
	}
}

// Apply seeds a definition into the store. The standard and template
// are created when absent; criteria are upserted so a re-run refreshes
// limits and titles without duplicating rows.
func Apply(ctx context.Context, st store.Store, def *Definition) error {
	std, err := st.GetStandardByCode(ctx, def.Standard.Code)
	if err != nil {
		return err
	}
	if std == nil {
		std = &model.Standard{
			Code:        def.Standard.Code,
			Name:        def.Standard.Name,
			Version:     def.Standard.Version,
			Description: def.Standard.Description,
			Industry:    def.Standard.Industry,
			Active:      true,
		}
		if err := st.CreateStandard(ctx, std); err != nil {
			return err
		}
		zap.L().Info("created standard", zap.String("code", std.Code))
	}

	criteria := make([]model.Criterion, len(def.Criteria))
	for i, cd := range def.Criteria {
		criteria[i] = cd.toModel(std.ID, i)
	}
	if err := st.CreateCriteria(ctx, criteria); err != nil {
		return err
	}

	if def.Template == nil {
		return nil
	}
	existing, err := st.GetTemplateByCode(ctx, def.Template.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		zap.L().Info("template already present, skipping",
			zap.String("code", def.Template.Code))
		return nil
	}

	// Field codes resolve against the freshly stored criteria so IDs
	// survive upserts of pre-existing rows.
	stored, err := st.GetCriteriaForStandard(ctx, std.ID)
	if err != nil {
		return err
	}
	byCode := make(map[string]string, len(stored))
	for _, c := range stored {
		byCode[c.Code] = c.ID
	}

	version := def.Template.Version
	if version == "" {
		version = "1.0"
	}
	tpl := &model.Template{
		Code:        def.Template.Code,
		Name:        def.Template.Name,
		StandardID:  std.ID,
		Category:    def.Template.Category,
		Version:     version,
		Description: def.Template.Description,
		Active:      true,
	}
	for i, f := range def.Template.Fields {
		tpl.Fields = append(tpl.Fields, model.TemplateField{
			CriterionID: byCode[f.Criterion],
			Required:    boolOrDefault(f.Required, true),
			Visible:     boolOrDefault(f.Visible, true),
			SortOrder:   i,
		})
	}
	if err := st.CreateTemplate(ctx, tpl); err != nil {
		return err
	}
	zap.L().Info("created template", zap.String("code", tpl.Code),
		zap.Int("fields", len(tpl.Fields)))
	return nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
