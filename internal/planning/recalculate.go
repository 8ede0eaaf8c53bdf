package planning

import (
	"fmt"
	"math"
	"slices"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// RecalcParams are the plan-level inputs of a cascade
type RecalcParams struct {
	Texture    agronomy.SoilTexture
	TargetPH   float64
	StartPH    float64
	AreaHa     float64
	MgCategory agronomy.Category
}

// Planner sequences applications and re-walks pH chains
type Planner struct {
	engine      *agronomy.Engine
	nearOptimum [2]float64
	overliming  float64
	plausiblePH [2]float64
}

// NewPlanner creates a planner over the given engine
func NewPlanner(engine *agronomy.Engine) *Planner {
	m := engine.Methodology()
	return &Planner{
		engine:      engine,
		nearOptimum: m.NearOptimum,
		overliming:  m.PHAfterCritical,
		plausiblePH: m.PlausiblePH,
	}
}

// Engine returns the calculation engine the planner uses
func (p *Planner) Engine() *agronomy.Engine {
	return p.engine
}

// RecalculatePlan re-walks the pH chain from fromIndex to the end and returns
// a new slice; the input is never modified. Applications must already be
// strictly ordered by (year, season, sequence). Applications before
// fromIndex are trusted as-is; Applied and Cancelled ones keep their recorded
// values and are skipped. The walk is idempotent.
func (p *Planner) RecalculatePlan(apps []LimingApplication, params RecalcParams, fromIndex int) ([]LimingApplication, error) {
	if err := p.checkParams(params); err != nil {
		return nil, err
	}
	if err := CheckOrder(apps); err != nil {
		return nil, err
	}
	if fromIndex < 0 || fromIndex > len(apps) {
		return nil, fmt.Errorf("%w: edit index %d outside plan of %d applications", agronomy.ErrInconsistentSequence, fromIndex, len(apps))
	}

	out := cloneApplications(apps)

	var prev *LimingApplication
	for i := fromIndex - 1; i >= 0; i-- {
		if out[i].Status.Active() {
			prev = &out[i]
			break
		}
	}

	for i := fromIndex; i < len(out); i++ {
		a := &out[i]
		if !a.Status.Active() {
			continue
		}

		pHBefore := params.StartPH
		if prev != nil {
			pHBefore = p.carryOver(prev, a.Year, params.Texture)
		}

		res, err := p.engine.SimulateApplication(agronomy.SimulationInput{
			DosePerHa: a.DosePerHa,
			Product:   a.Product(),
			Texture:   params.Texture,
			PHBefore:  pHBefore,
			AreaHa:    params.AreaHa,
		})
		if err != nil {
			return nil, fmt.Errorf("application %d (%d %s): %w", a.Sequence, a.Year, a.Season, err)
		}

		a.PHBefore = pHBefore
		a.PHAfter = res.PHAfter
		a.TotalDose = res.TotalDose
		a.CaOPerHa = res.CaOPerHa
		a.MgOPerHa = res.MgOPerHa
		a.EffectiveCaOPerHa = res.EffectiveCaOPerHa
		a.Warnings = res.Warnings
		a.Note = p.AdvisoryNote(NoteInput{
			PHBefore:   pHBefore,
			PHAfter:    res.PHAfter,
			TargetPH:   params.TargetPH,
			MgCategory: params.MgCategory,
			Product:    a.Product(),
		})
		prev = a
	}
	return out, nil
}

// carryOver is the pH an application starts from after its active predecessor
func (p *Planner) carryOver(prev *LimingApplication, year int, texture agronomy.SoilTexture) float64 {
	elapsed := year - prev.Year
	if elapsed <= 0 {
		return prev.PHAfter
	}
	return p.engine.Acidify(prev.PHAfter, elapsed, texture)
}

func (p *Planner) checkParams(params RecalcParams) error {
	if !params.Texture.Valid() {
		return &agronomy.FieldError{Field: "soil_texture", Reason: fmt.Sprintf("unknown texture %q", params.Texture)}
	}
	if params.AreaHa < 0 || math.IsNaN(params.AreaHa) {
		return &agronomy.FieldError{Field: "area_ha", Reason: "must not be negative"}
	}
	lo, hi := p.plausiblePH[0], p.plausiblePH[1]
	if math.IsNaN(params.StartPH) || params.StartPH < lo || params.StartPH > hi {
		return &agronomy.FieldError{Field: "start_ph", Reason: fmt.Sprintf("must be between %.1f and %.1f", lo, hi)}
	}
	return nil
}

// CheckOrder fails with ErrInconsistentSequence unless apps are strictly
// ordered by (year, season, sequence).
func CheckOrder(apps []LimingApplication) error {
	for i := range apps {
		if !apps[i].Season.Valid() {
			return fmt.Errorf("%w: application %d has unknown season %q", agronomy.ErrInconsistentSequence, i, apps[i].Season)
		}
		if i > 0 && compareApplications(apps[i-1], apps[i]) >= 0 {
			return fmt.Errorf("%w: application %d (%d %s #%d) does not follow %d (%d %s #%d)",
				agronomy.ErrInconsistentSequence,
				i, apps[i].Year, apps[i].Season, apps[i].Sequence,
				i-1, apps[i-1].Year, apps[i-1].Season, apps[i-1].Sequence)
		}
	}
	return nil
}

// SortApplications returns a copy ordered by (year, season, sequence) with
// sequences renumbered 1..n.
func SortApplications(apps []LimingApplication) []LimingApplication {
	out := cloneApplications(apps)
	slices.SortStableFunc(out, compareApplications)
	for i := range out {
		out[i].Sequence = i + 1
	}
	return out
}

func compareApplications(a, b LimingApplication) int {
	if a.Year != b.Year {
		return a.Year - b.Year
	}
	if a.Season != b.Season {
		return a.Season.Order() - b.Season.Order()
	}
	return a.Sequence - b.Sequence
}

func cloneApplications(apps []LimingApplication) []LimingApplication {
	out := make([]LimingApplication, len(apps))
	copy(out, apps)
	for i := range out {
		out[i].Warnings = slices.Clone(out[i].Warnings)
	}
	return out
}

// ConsistencyIssue describes a broken link of a stored pH chain
type ConsistencyIssue struct {
	ApplicationID string  `json:"application_id"`
	Sequence      int     `json:"sequence"`
	Field         string  `json:"field"`
	Stored        float64 `json:"stored"`
	Expected      float64 `json:"expected"`
}

// tolerance for values that went through a database round trip
const chainTolerance = 1e-9

// Verify recomputes the chain and reports every stored value that differs
func (p *Planner) Verify(apps []LimingApplication, params RecalcParams) ([]ConsistencyIssue, error) {
	want, err := p.RecalculatePlan(apps, params, 0)
	if err != nil {
		return nil, err
	}
	var issues []ConsistencyIssue
	for i := range apps {
		got, exp := apps[i], want[i]
		check := func(field string, stored, expected float64) {
			if math.Abs(stored-expected) > chainTolerance {
				issues = append(issues, ConsistencyIssue{
					ApplicationID: got.ID.String(),
					Sequence:      got.Sequence,
					Field:         field,
					Stored:        stored,
					Expected:      expected,
				})
			}
		}
		check("ph_before", got.PHBefore, exp.PHBefore)
		check("ph_after", got.PHAfter, exp.PHAfter)
		check("total_dose", got.TotalDose, exp.TotalDose)
		check("cao_per_ha", got.CaOPerHa, exp.CaOPerHa)
		check("effective_cao_per_ha", got.EffectiveCaOPerHa, exp.EffectiveCaOPerHa)
	}
	return issues, nil
}
