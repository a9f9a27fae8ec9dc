// Package compliance evaluates raw measurement values against criterion
// definitions and derives record-level summaries. Everything here is
// pure: a bad value yields an unknown outcome, never an error, so one
// unparsable measurement cannot abort a whole record.
package compliance

import (
	"strconv"
	"strings"

	"github.com/brightline-qa/qms-cli/internal/model"
)

// Evaluation is the outcome of checking one raw value against one
// criterion.
type Evaluation struct {
	NumericValue *float64
	Compliance   model.Compliance
	// Deviation is zero on pass; otherwise the signed distance to the
	// nearest violated bound (negative below the lower limit, positive
	// above the upper one).
	Deviation float64
}

var (
	trueTokens  = map[string]bool{"yes": true, "true": true, "1": true}
	falseTokens = map[string]bool{"no": true, "false": true, "0": true}
)

// Evaluate classifies rawValue against the criterion's data type and
// limits. Text criteria always come back unknown; use EvaluateOverride
// when the operator supplies a manual verdict.
func Evaluate(c model.Criterion, rawValue string) Evaluation {
	raw := strings.TrimSpace(rawValue)

	switch c.DataType {
	case model.DataTypeNumeric:
		return evaluateNumeric(c, raw)
	case model.DataTypeBoolean:
		return evaluateBoolean(raw)
	case model.DataTypeSelect:
		return evaluateSelect(c, []string{raw})
	case model.DataTypeMultiSelect:
		return evaluateSelect(c, splitMulti(raw))
	default: // text and anything unrecognized
		return Evaluation{Compliance: model.ComplianceUnknown}
	}
}

// EvaluateOverride records an explicit operator verdict for criteria the
// evaluator cannot decide automatically.
func EvaluateOverride(pass bool) Evaluation {
	if pass {
		return Evaluation{Compliance: model.CompliancePass}
	}
	return Evaluation{Compliance: model.ComplianceFail}
}

func evaluateNumeric(c model.Criterion, raw string) Evaluation {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Evaluation{Compliance: model.ComplianceUnknown}
	}

	ev := Evaluation{NumericValue: &v, Compliance: model.CompliancePass}
	if c.LimitMin != nil && v < *c.LimitMin {
		ev.Compliance = model.ComplianceFail
		ev.Deviation = v - *c.LimitMin
	} else if c.LimitMax != nil && v > *c.LimitMax {
		ev.Compliance = model.ComplianceFail
		ev.Deviation = v - *c.LimitMax
	}
	return ev
}

func evaluateBoolean(raw string) Evaluation {
	switch tok := strings.ToLower(raw); {
	case trueTokens[tok]:
		return Evaluation{Compliance: model.CompliancePass}
	case falseTokens[tok]:
		return Evaluation{Compliance: model.ComplianceFail}
	default:
		return Evaluation{Compliance: model.ComplianceUnknown}
	}
}

func evaluateSelect(c model.Criterion, selected []string) Evaluation {
	if len(selected) == 0 || len(c.AcceptableValues) == 0 {
		return Evaluation{Compliance: model.ComplianceUnknown}
	}
	acceptable := make(map[string]bool, len(c.AcceptableValues))
	for _, v := range c.AcceptableValues {
		acceptable[strings.ToLower(strings.TrimSpace(v))] = true
	}
	// Every selected option must be on the allow-list.
	for _, s := range selected {
		if !acceptable[strings.ToLower(strings.TrimSpace(s))] {
			return Evaluation{Compliance: model.ComplianceFail}
		}
	}
	return Evaluation{Compliance: model.CompliancePass}
}

func splitMulti(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
