package agronomy

import (
	"fmt"
	"math"
)

// LimingNeed is the CaO deficit of a parcel and how it must be split
type LimingNeed struct {
	PH                 float64      `json:"ph"`
	TargetPH           float64      `json:"target_ph"`
	Severity           SeverityTier `json:"severity"`
	TotalCaOPerHa      float64      `json:"total_cao_per_ha"`
	MaxSingleDosePerHa float64      `json:"max_single_dose_per_ha"`
	ApplicationsNeeded int          `json:"applications_needed"`
}

// ComputeLimingNeed derives the effective-CaO deficit per hectare over one
// correction cycle and the largest safe single dose.
func (e *Engine) ComputeLimingNeed(pH float64, texture SoilTexture, landUse LandUse) (LimingNeed, error) {
	if err := e.checkPH("ph", pH); err != nil {
		return LimingNeed{}, err
	}
	if err := checkTexture(texture); err != nil {
		return LimingNeed{}, err
	}
	if !landUse.Valid() {
		return LimingNeed{}, &FieldError{Field: "land_use", Reason: fmt.Sprintf("unknown land use %q", landUse)}
	}

	target := e.TargetPH(texture, landUse)
	tier := e.SeverityFor(pH, target)
	need := LimingNeed{
		PH:                 pH,
		TargetPH:           target,
		Severity:           tier,
		MaxSingleDosePerHa: e.maxSingleDose(texture, tier),
	}
	if pH >= target {
		return need, nil
	}

	// normative (t/ha/yr) x cycle length x severity
	total := e.m.AnnualNormative[landUse][texture] * e.m.CycleYears * e.m.SeverityMultiplier[tier]
	need.TotalCaOPerHa = round4(total)
	if need.TotalCaOPerHa > 0 {
		need.ApplicationsNeeded = int(math.Ceil(need.TotalCaOPerHa / need.MaxSingleDosePerHa))
	}
	return need, nil
}

// maxSingleDose uses the texture ceiling for intensive correction and the
// floor otherwise, so it never drops below the published floor.
func (e *Engine) maxSingleDose(texture SoilTexture, tier SeverityTier) float64 {
	c := e.m.DoseCaps[texture]
	if tier.Intensive() {
		return c.Ceiling
	}
	return c.Floor
}
