package agronomy

import (
	"errors"
	"fmt"
	"math"
)

// ValidationResults collects every problem of a request at once
type ValidationResults struct {
	IsValid  bool          `json:"is_valid"`
	Errors   []*FieldError `json:"errors"`
	Warnings []Warning     `json:"warnings"`
}

// Err returns the first error or nil
func (r *ValidationResults) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// maximum plausible Mehlich 3 extract, mg/kg
var nutrientCeiling = map[Nutrient]float64{
	NutrientP:  2000,
	NutrientK:  5000,
	NutrientMg: 5000,
	NutrientCa: 30000,
	NutrientS:  1000,
}

// ValidateReading checks a lab reading for physically plausible values
func (e *Engine) ValidateReading(r Reading) *ValidationResults {
	res := &ValidationResults{}
	if err := e.checkPH("ph", r.PH); err != nil {
		var fe *FieldError
		errors.As(err, &fe)
		res.Errors = append(res.Errors, fe)
	}
	for _, n := range Nutrients[1:] {
		v := r.Value(n)
		if math.IsNaN(v) || v < 0 {
			res.Errors = append(res.Errors, &FieldError{Field: fieldName(n), Reason: "must not be negative"})
			continue
		}
		if v > nutrientCeiling[n] {
			res.Errors = append(res.Errors, &FieldError{
				Field:  fieldName(n),
				Reason: fmt.Sprintf("must not exceed %.0f mg/kg", nutrientCeiling[n]),
			})
		}
	}
	// a zero Mg usually means the column was not measured
	if r.Mg == 0 {
		res.Warnings = append(res.Warnings, Warning{
			Code:     "MG_NOT_MEASURED",
			Field:    "mg",
			Severity: SeverityWarning,
			Message:  "magnesium is zero; product selection will assume a deficiency",
		})
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

func fieldName(n Nutrient) string {
	switch n {
	case NutrientPH:
		return "ph"
	case NutrientP:
		return "p"
	case NutrientK:
		return "k"
	case NutrientMg:
		return "mg"
	case NutrientCa:
		return "ca"
	case NutrientS:
		return "s"
	}
	return string(n)
}
