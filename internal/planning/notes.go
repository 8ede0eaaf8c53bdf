package planning

import (
	"fmt"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// NoteInput is what the advisory note of one application depends on
type NoteInput struct {
	PHBefore   float64
	PHAfter    float64
	TargetPH   float64
	MgCategory agronomy.Category
	Product    agronomy.LimingProduct
}

var tierNotes = map[agronomy.SeverityTier]string{
	agronomy.TierCriticalUrgent: "Critically acidic soil (pH %.2f), correct without delay",
	agronomy.TierUrgent:         "Strongly acidic soil (pH %.2f), urgent correction",
	agronomy.TierIntensive:      "Acidic soil (pH %.2f), intensive liming",
	agronomy.TierStandard:       "Moderately acidic soil (pH %.2f), standard liming",
	agronomy.TierMaintenance:    "pH %.2f slightly below target, maintenance liming",
	agronomy.TierPreventive:     "pH %.2f at or above target, preventive dose only",
}

// AdvisoryNote summarizes an application: the severity of its starting pH
// plus at most one secondary clause, in priority order.
func (p *Planner) AdvisoryNote(in NoteInput) string {
	tier := p.engine.SeverityFor(in.PHBefore, in.TargetPH)
	note := fmt.Sprintf(tierNotes[tier], in.PHBefore)

	switch {
	case in.PHAfter > p.overliming:
		note += fmt.Sprintf("; over-liming risk, predicted pH %.2f", in.PHAfter)
	case in.PHAfter >= p.nearOptimum[0] && in.PHAfter <= p.nearOptimum[1]:
		note += fmt.Sprintf("; predicted pH %.2f is near the optimum", in.PHAfter)
	case in.PHAfter >= in.TargetPH:
		note += fmt.Sprintf("; target pH %.1f reached", in.TargetPH)
	case in.MgCategory.Deficient() && !in.Product.HasMgO():
		note += "; magnesium stays deficient, consider dolomite"
	case in.MgCategory >= agronomy.CategoryHigh && in.Product.HasMgO():
		note += "; magnesium already high, product adds surplus MgO"
	}
	return note
}
