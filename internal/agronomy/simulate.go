package agronomy

import (
	"fmt"
	"math"
)

// SimulationInput describes one proposed application
type SimulationInput struct {
	DosePerHa float64       `json:"dose_per_ha"`
	Product   LimingProduct `json:"product"`
	Texture   SoilTexture   `json:"soil_texture"`
	PHBefore  float64       `json:"ph_before"`
	AreaHa    float64       `json:"area_ha"`
}

// SimulationResult holds physical and effective figures separately: physical
// CaO drives the cap checks, effective CaO drives the pH response.
type SimulationResult struct {
	DosePerHa         float64   `json:"dose_per_ha"`
	TotalDose         float64   `json:"total_dose"`
	ENV               float64   `json:"env"`
	CaOPerHa          float64   `json:"cao_per_ha"`
	MgOPerHa          float64   `json:"mgo_per_ha"`
	EffectiveCaOPerHa float64   `json:"effective_cao_per_ha"`
	PHBefore          float64   `json:"ph_before"`
	PHAfter           float64   `json:"ph_after"`
	Warnings          []Warning `json:"warnings"`
}

// SimulateApplication predicts the outcome of a dose and grades it.
// Warnings never turn into errors; only implausible inputs do.
func (e *Engine) SimulateApplication(in SimulationInput) (SimulationResult, error) {
	if in.DosePerHa < 0 || math.IsNaN(in.DosePerHa) {
		return SimulationResult{}, &FieldError{Field: "dose_per_ha", Reason: "must not be negative"}
	}
	if in.AreaHa < 0 || math.IsNaN(in.AreaHa) {
		return SimulationResult{}, &FieldError{Field: "area_ha", Reason: "must not be negative"}
	}
	if err := in.Product.Validate(); err != nil {
		return SimulationResult{}, err
	}
	if err := checkTexture(in.Texture); err != nil {
		return SimulationResult{}, err
	}
	if err := e.checkPH("ph_before", in.PHBefore); err != nil {
		return SimulationResult{}, err
	}

	env := e.ENV(in.Product)
	res := SimulationResult{
		DosePerHa:         in.DosePerHa,
		TotalDose:         in.DosePerHa * in.AreaHa,
		ENV:               env,
		CaOPerHa:          in.DosePerHa * in.Product.CaOContent / 100,
		MgOPerHa:          in.DosePerHa * in.Product.MgOContent / 100,
		EffectiveCaOPerHa: in.DosePerHa * env,
		PHBefore:          in.PHBefore,
	}
	res.PHAfter = e.PHAfter(res.EffectiveCaOPerHa, in.Texture, in.PHBefore)
	res.Warnings = e.doseWarnings(res, in.Texture)
	return res, nil
}

func (e *Engine) doseWarnings(res SimulationResult, texture SoilTexture) []Warning {
	var warnings []Warning
	limit := e.m.DoseCaps[texture].Ceiling
	critical := limit * e.m.CriticalDoseFactor

	switch {
	case res.CaOPerHa > critical:
		warnings = append(warnings, Warning{
			Code:     WarnDoseAboveCriticalCap,
			Field:    "dose_per_ha",
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%.2f t CaO/ha exceeds %.0f%% of the %s-soil cap of %.1f t/ha", res.CaOPerHa, e.m.CriticalDoseFactor*100, texture, limit),
		})
	case res.CaOPerHa > limit:
		warnings = append(warnings, Warning{
			Code:     WarnDoseAboveCap,
			Field:    "dose_per_ha",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%.2f t CaO/ha exceeds the %s-soil cap of %.1f t/ha", res.CaOPerHa, texture, limit),
		})
	}

	switch {
	case res.PHAfter > e.m.PHAfterCritical:
		warnings = append(warnings, Warning{
			Code:     WarnOverliming,
			Field:    "ph_after",
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("predicted pH %.2f risks over-liming (above %.1f)", res.PHAfter, e.m.PHAfterCritical),
		})
	case res.PHAfter > e.m.PHAfterWarning:
		warnings = append(warnings, Warning{
			Code:     WarnPHAfterHigh,
			Field:    "ph_after",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("predicted pH %.2f is above %.1f", res.PHAfter, e.m.PHAfterWarning),
		})
	}
	return warnings
}
