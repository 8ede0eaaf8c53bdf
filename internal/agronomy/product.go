package agronomy

import (
	"fmt"
	"math"
)

// ProductRecommendation is one way of covering a CaO deficit with a single product
type ProductRecommendation struct {
	Product           LimingProduct `json:"product"`
	Share             float64       `json:"share"`
	ENV               float64       `json:"env"`
	DosePerHa         float64       `json:"dose_per_ha"`
	CaOPerHa          float64       `json:"cao_per_ha"`
	MgOPerHa          float64       `json:"mgo_per_ha"`
	EffectiveCaOPerHa float64       `json:"effective_cao_per_ha"`
	Reason            string        `json:"reason"`
}

// ProductSelection carries the recommended product and the computed alternative
type ProductSelection struct {
	MgCategory  Category              `json:"mg_category"`
	Primary     ProductRecommendation `json:"primary"`
	Alternative ProductRecommendation `json:"alternative"`
}

// SelectProduct picks dolomite when Mg is Low or Marginal and limestone
// otherwise. The product is never blended; deficit is t effective CaO/ha.
func (e *Engine) SelectProduct(mgCategory Category, deficit float64) (ProductSelection, error) {
	return e.SelectProductFrom(e.catalog, mgCategory, deficit)
}

// SelectProductFrom applies the selector rules to a caller-supplied catalog
func (e *Engine) SelectProductFrom(c ProductCatalog, mgCategory Category, deficit float64) (ProductSelection, error) {
	if mgCategory < CategoryLow || mgCategory > CategoryVeryHigh {
		return ProductSelection{}, &FieldError{Field: "mg_category", Reason: "unknown category"}
	}
	if deficit < 0 || math.IsNaN(deficit) {
		return ProductSelection{}, &FieldError{Field: "deficit", Reason: "must not be negative"}
	}

	if err := c.Limestone.Validate(); err != nil {
		return ProductSelection{}, fmt.Errorf("limestone: %w", err)
	}
	if err := c.Dolomite.Validate(); err != nil {
		return ProductSelection{}, fmt.Errorf("dolomite: %w", err)
	}

	dolomite := e.recommend(c.Dolomite, deficit)
	limestone := e.recommend(c.Limestone, deficit)

	sel := ProductSelection{MgCategory: mgCategory}
	if mgCategory.Deficient() {
		dolomite.Reason = "magnesium is " + mgCategory.String() + "; dolomite corrects pH and supplies MgO"
		limestone.Reason = "corrects pH only; magnesium deficiency stays uncorrected"
		sel.Primary, sel.Alternative = dolomite, limestone
	} else {
		limestone.Reason = "magnesium is " + mgCategory.String() + "; limestone avoids upsetting the K:Mg balance"
		dolomite.Reason = "supplies surplus MgO on a soil already sufficient in magnesium"
		sel.Primary, sel.Alternative = limestone, dolomite
	}
	return sel, nil
}

// recommend sizes a product dose so that dose x ENV covers the deficit
func (e *Engine) recommend(p LimingProduct, deficit float64) ProductRecommendation {
	env := e.ENV(p)
	r := ProductRecommendation{Product: p, Share: 1, ENV: round4(env)}
	if deficit <= 0 || env <= 0 {
		return r
	}
	dose := deficit / env
	r.DosePerHa = round4(dose)
	r.CaOPerHa = round4(dose * p.CaOContent / 100)
	r.MgOPerHa = round4(dose * p.MgOContent / 100)
	r.EffectiveCaOPerHa = round4(dose * env)
	return r
}
