package economics

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// ParcelInput is the per-parcel part of an estimate
type ParcelInput struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	AreaHa      float64              `json:"area_ha"`
	SoilTexture agronomy.SoilTexture `json:"soil_texture"`
	LandUse     agronomy.LandUse     `json:"land_use"`
	PH          float64              `json:"ph"`
}

// Params are the global prices of an estimate. A zero LimingCostPerTon
// falls back to the product price; the estimate echoes the prices it used.
type Params struct {
	FertilizerCostPerHa float64                 `json:"fertilizer_cost_per_ha"`
	RevenuePerHa        float64                 `json:"revenue_per_ha"`
	LimingCostPerTon    float64                 `json:"liming_cost_per_ton"`
	Product             *agronomy.LimingProduct `json:"product,omitempty"`
}

// ParcelLoss is the annual loss and payback of one parcel
type ParcelLoss struct {
	ParcelInput
	Efficiency          float64  `json:"efficiency"`
	YieldLossFraction   float64  `json:"yield_loss_fraction"`
	FertilizerLossPerHa float64  `json:"fertilizer_loss_per_ha"`
	YieldLossPerHa      float64  `json:"yield_loss_per_ha"`
	LossPerHa           float64  `json:"loss_per_ha"`
	TotalLoss           float64  `json:"total_loss"`
	CaONeedPerHa        float64  `json:"cao_need_per_ha"`
	ProductTons         float64  `json:"product_tons"`
	LimingCost          float64  `json:"liming_cost"`
	PaybackMonths       *float64 `json:"payback_months"`
}

// Aggregate sums an estimate over all parcels; efficiency is area weighted
type Aggregate struct {
	AreaHa        float64  `json:"area_ha"`
	Efficiency    float64  `json:"efficiency"`
	LossPerHa     float64  `json:"loss_per_ha"`
	TotalLoss     float64  `json:"total_loss"`
	ProductTons   float64  `json:"product_tons"`
	LimingCost    float64  `json:"liming_cost"`
	PaybackMonths *float64 `json:"payback_months"`
}

// Estimate is the result of EstimateLoss
type Estimate struct {
	Product   agronomy.LimingProduct `json:"product"`
	Params    Params                 `json:"params"`
	Parcels   []ParcelLoss           `json:"parcels"`
	Aggregate Aggregate              `json:"aggregate"`
}

// Estimator converts parcel pH into money
type Estimator struct {
	engine     *agronomy.Engine
	efficiency Curve
	yieldLoss  Curve
}

// NewEstimator validates both curves
func NewEstimator(engine *agronomy.Engine, efficiency, yieldLoss Curve) (*Estimator, error) {
	if err := efficiency.Validate("efficiency_curve"); err != nil {
		return nil, err
	}
	if err := yieldLoss.Validate("yield_loss_curve"); err != nil {
		return nil, err
	}
	return &Estimator{
		engine:     engine,
		efficiency: slices.Clone(efficiency),
		yieldLoss:  slices.Clone(yieldLoss),
	}, nil
}

// NewDefaultEstimator uses the built-in curves
func NewDefaultEstimator(engine *agronomy.Engine) *Estimator {
	e, err := NewEstimator(engine, DefaultEfficiencyCurve(), DefaultYieldLossCurve())
	if err != nil {
		panic(err)
	}
	return e
}

// Efficiency returns the fertilizer efficiency at pH
func (e *Estimator) Efficiency(pH float64) float64 {
	return e.efficiency.At(pH)
}

// YieldLossFraction returns the revenue share lost at pH
func (e *Estimator) YieldLossFraction(pH float64) float64 {
	return e.yieldLoss.At(pH)
}

// EstimateLoss computes the annual loss of every parcel, the cost of
// liming it to target and the months until liming pays back.
func (e *Estimator) EstimateLoss(parcels []ParcelInput, params Params) (*Estimate, error) {
	if err := checkParams(params); err != nil {
		return nil, err
	}
	product := e.engine.Catalog().Limestone
	if params.Product != nil {
		product = *params.Product
		if err := product.Validate(); err != nil {
			return nil, err
		}
	}
	if product.CaOContent <= 0 {
		return nil, &agronomy.FieldError{Field: "product.cao_content", Reason: "must be positive to convert CaO need into product"}
	}
	costPerTon := params.LimingCostPerTon
	if costPerTon == 0 {
		costPerTon = product.PricePerTon
	}
	caoFraction := product.CaOContent / 100

	params.LimingCostPerTon = costPerTon
	params.Product = &product
	out := &Estimate{Product: product, Params: params, Parcels: make([]ParcelLoss, 0, len(parcels))}
	var weightedEfficiency float64
	for i, p := range parcels {
		if p.AreaHa < 0 || math.IsNaN(p.AreaHa) {
			return nil, &agronomy.FieldError{Field: fmt.Sprintf("parcels[%d].area_ha", i), Reason: "must not be negative"}
		}
		landUse := p.LandUse
		if landUse == "" {
			landUse = agronomy.LandUseArable
		}
		need, err := e.engine.ComputeLimingNeed(p.PH, p.SoilTexture, landUse)
		if err != nil {
			return nil, fmt.Errorf("parcels[%d]: %w", i, err)
		}
		p.LandUse = landUse

		row := ParcelLoss{
			ParcelInput:       p,
			Efficiency:        round4(e.Efficiency(p.PH)),
			YieldLossFraction: round4(e.YieldLossFraction(p.PH)),
			CaONeedPerHa:      need.TotalCaOPerHa,
		}
		row.FertilizerLossPerHa = round2(params.FertilizerCostPerHa * (1 - row.Efficiency))
		row.YieldLossPerHa = round2(params.RevenuePerHa * row.YieldLossFraction)
		row.LossPerHa = round2(row.FertilizerLossPerHa + row.YieldLossPerHa)
		row.TotalLoss = round2(row.LossPerHa * p.AreaHa)
		row.ProductTons = round2(need.TotalCaOPerHa / caoFraction * p.AreaHa)
		row.LimingCost = round2(row.ProductTons * costPerTon)
		row.PaybackMonths = payback(row.LimingCost, row.TotalLoss)
		out.Parcels = append(out.Parcels, row)

		agg := &out.Aggregate
		agg.AreaHa += p.AreaHa
		agg.TotalLoss += row.TotalLoss
		agg.ProductTons += row.ProductTons
		agg.LimingCost += row.LimingCost
		weightedEfficiency += row.Efficiency * p.AreaHa
	}

	agg := &out.Aggregate
	agg.AreaHa = round4(agg.AreaHa)
	agg.TotalLoss = round2(agg.TotalLoss)
	agg.ProductTons = round2(agg.ProductTons)
	agg.LimingCost = round2(agg.LimingCost)
	if agg.AreaHa > 0 {
		agg.Efficiency = round4(weightedEfficiency / agg.AreaHa)
		agg.LossPerHa = round2(agg.TotalLoss / agg.AreaHa)
	}
	agg.PaybackMonths = payback(agg.LimingCost, agg.TotalLoss)
	return out, nil
}

// RecommendedPrice back-solves the per-hectare price that covers totalCost
// and leaves targetProfitPerHa on every hectare.
func RecommendedPrice(totalCost, targetProfitPerHa, areaHa float64) (float64, error) {
	if areaHa <= 0 {
		return 0, &agronomy.FieldError{Field: "area_ha", Reason: "must be positive"}
	}
	if totalCost < 0 {
		return 0, &agronomy.FieldError{Field: "total_cost", Reason: "must not be negative"}
	}
	return round2((totalCost + targetProfitPerHa*areaHa) / areaHa), nil
}

// SortColumn names a sortable ParcelLoss column
type SortColumn string

const (
	SortByName          SortColumn = "name"
	SortByArea          SortColumn = "area_ha"
	SortByPH            SortColumn = "ph"
	SortByEfficiency    SortColumn = "efficiency"
	SortByLossPerHa     SortColumn = "loss_per_ha"
	SortByTotalLoss     SortColumn = "total_loss"
	SortByLimingCost    SortColumn = "liming_cost"
	SortByPaybackMonths SortColumn = "payback_months"
)

var sortKeys = map[SortColumn]func(ParcelLoss) float64{
	SortByArea:       func(r ParcelLoss) float64 { return r.AreaHa },
	SortByPH:         func(r ParcelLoss) float64 { return r.PH },
	SortByEfficiency: func(r ParcelLoss) float64 { return r.Efficiency },
	SortByLossPerHa:  func(r ParcelLoss) float64 { return r.LossPerHa },
	SortByTotalLoss:  func(r ParcelLoss) float64 { return r.TotalLoss },
	SortByLimingCost: func(r ParcelLoss) float64 { return r.LimingCost },
}

// SortParcels orders rows by column. Ties, and rows without a payback
// when sorting by payback, fall back to name order. Rows without a
// payback always sort last.
func SortParcels(rows []ParcelLoss, column SortColumn, desc bool) error {
	byName := func(a, b ParcelLoss) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	}
	directed := func(c int) int {
		if desc {
			return -c
		}
		return c
	}

	switch column {
	case "", SortByName:
		slices.SortStableFunc(rows, func(a, b ParcelLoss) int { return directed(byName(a, b)) })
	case SortByPaybackMonths:
		slices.SortStableFunc(rows, func(a, b ParcelLoss) int {
			switch {
			case a.PaybackMonths == nil && b.PaybackMonths == nil:
				return byName(a, b)
			case a.PaybackMonths == nil:
				return 1
			case b.PaybackMonths == nil:
				return -1
			}
			if c := directed(compareFloat(*a.PaybackMonths, *b.PaybackMonths)); c != 0 {
				return c
			}
			return byName(a, b)
		})
	default:
		key, ok := sortKeys[column]
		if !ok {
			return &agronomy.FieldError{Field: "sort_by", Reason: fmt.Sprintf("unknown column %q", column)}
		}
		slices.SortStableFunc(rows, func(a, b ParcelLoss) int {
			if c := directed(compareFloat(key(a), key(b))); c != 0 {
				return c
			}
			return byName(a, b)
		})
	}
	return nil
}

func checkParams(p Params) error {
	if p.FertilizerCostPerHa < 0 {
		return &agronomy.FieldError{Field: "fertilizer_cost_per_ha", Reason: "must not be negative"}
	}
	if p.RevenuePerHa < 0 {
		return &agronomy.FieldError{Field: "revenue_per_ha", Reason: "must not be negative"}
	}
	if p.LimingCostPerTon < 0 {
		return &agronomy.FieldError{Field: "liming_cost_per_ton", Reason: "must not be negative"}
	}
	return nil
}

// payback is undefined when liming saves nothing
func payback(cost, annualLoss float64) *float64 {
	if annualLoss <= 0 {
		return nil
	}
	m := round2(cost / (annualLoss / 12))
	return &m
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
