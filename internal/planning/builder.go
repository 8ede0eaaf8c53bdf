package planning

import (
	"fmt"
	"math"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// BuildRequest describes the plan the generator should lay out
type BuildRequest struct {
	Need         agronomy.LimingNeed
	Product      agronomy.LimingProduct
	StartYear    int
	StartSeason  Season
	SlotsPerYear int
	Params       RecalcParams
}

// BuildPlan splits the need into equal doses that each stay within the
// single-dose cap, lays them out over consecutive season slots and runs the
// cascade. Product doses are rounded down to 10 kg so a dose never exceeds
// the cap because of rounding.
func (p *Planner) BuildPlan(req BuildRequest) ([]LimingApplication, error) {
	if err := req.Product.Validate(); err != nil {
		return nil, err
	}
	if req.StartYear < 1900 || req.StartYear > 2200 {
		return nil, &agronomy.FieldError{Field: "start_year", Reason: "must be a calendar year"}
	}
	if req.StartSeason == "" {
		req.StartSeason = SeasonSpring
	}
	if !req.StartSeason.Valid() {
		return nil, &agronomy.FieldError{Field: "start_season", Reason: fmt.Sprintf("unknown season %q", req.StartSeason)}
	}
	if req.SlotsPerYear == 0 {
		req.SlotsPerYear = 1
	}
	if req.SlotsPerYear < 1 || req.SlotsPerYear > 2 {
		return nil, &agronomy.FieldError{Field: "slots_per_year", Reason: "must be 1 or 2"}
	}
	if req.Need.TotalCaOPerHa <= 0 {
		return []LimingApplication{}, nil
	}
	if req.Need.MaxSingleDosePerHa <= 0 {
		return nil, &agronomy.FieldError{Field: "max_single_dose_per_ha", Reason: "must be positive"}
	}

	env := p.engine.ENV(req.Product)
	n := req.Need.ApplicationsNeeded
	if atLeast := int(math.Ceil(req.Need.TotalCaOPerHa / req.Need.MaxSingleDosePerHa)); n < atLeast {
		n = atLeast
	}
	effectivePerDose := req.Need.TotalCaOPerHa / float64(n)
	dose := math.Floor(effectivePerDose/env*100) / 100

	slots := seasonSlots(req.StartYear, req.StartSeason, req.SlotsPerYear, n)
	apps := make([]LimingApplication, n)
	for i := range apps {
		apps[i] = LimingApplication{
			Sequence:  i + 1,
			Year:      slots[i].year,
			Season:    slots[i].season,
			DosePerHa: dose,
			Status:    StatusPlanned,
		}
		apps[i].SetProduct(req.Product)
	}
	return p.RecalculatePlan(apps, req.Params, 0)
}

type slot struct {
	year   int
	season Season
}

// seasonSlots yields n slots starting at the first slot not before the start
// season. Two slots per year use spring and autumn; one slot per year keeps
// the start season.
func seasonSlots(startYear int, start Season, perYear, n int) []slot {
	seasons := []Season{start}
	if perYear == 2 {
		seasons = []Season{SeasonSpring, SeasonAutumn}
	}

	year, idx := startYear, 0
	for idx < len(seasons) && seasons[idx].Order() < start.Order() {
		idx++
	}
	if idx == len(seasons) {
		year, idx = year+1, 0
	}

	out := make([]slot, 0, n)
	for len(out) < n {
		out = append(out, slot{year: year, season: seasons[idx]})
		idx++
		if idx == len(seasons) {
			year, idx = year+1, 0
		}
	}
	return out
}
