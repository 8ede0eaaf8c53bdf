package agronomy

import (
	"fmt"
	"math"
)

// LimingProduct is a catalog entry; contents are mass percentages
type LimingProduct struct {
	Name        string  `json:"name" yaml:"name"`
	CaOContent  float64 `json:"cao_content" yaml:"cao_content"`
	MgOContent  float64 `json:"mgo_content" yaml:"mgo_content"`
	PricePerTon float64 `json:"price_per_ton" yaml:"price_per_ton"`
}

// HasMgO reports whether the product supplies magnesium
func (p LimingProduct) HasMgO() bool {
	return p.MgOContent > 0
}

// Validate rejects contents outside 0-100 % and unnamed products
func (p LimingProduct) Validate() error {
	if p.Name == "" {
		return &FieldError{Field: "product.name", Reason: "is required"}
	}
	if p.CaOContent < 0 || p.CaOContent > 100 {
		return &FieldError{Field: "product.cao_content", Reason: "must be between 0 and 100"}
	}
	if p.MgOContent < 0 || p.MgOContent > 100 {
		return &FieldError{Field: "product.mgo_content", Reason: "must be between 0 and 100"}
	}
	if p.CaOContent+p.MgOContent <= 0 {
		return &FieldError{Field: "product", Reason: "has no neutralizing content"}
	}
	if p.PricePerTon < 0 {
		return &FieldError{Field: "product.price_per_ton", Reason: "must not be negative"}
	}
	return nil
}

// ProductCatalog holds the two reference products the selector chooses from
type ProductCatalog struct {
	Limestone LimingProduct `json:"limestone" yaml:"limestone"`
	Dolomite  LimingProduct `json:"dolomite" yaml:"dolomite"`
}

// DefaultCatalog returns ground limestone and dolomitic limestone
func DefaultCatalog() ProductCatalog {
	return ProductCatalog{
		Limestone: LimingProduct{Name: "Ground limestone", CaOContent: 50, MgOContent: 0, PricePerTon: 950},
		Dolomite:  LimingProduct{Name: "Dolomitic limestone", CaOContent: 30, MgOContent: 18, PricePerTon: 1150},
	}
}

// Engine evaluates the liming model against one methodology and catalog.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	m       Methodology
	catalog ProductCatalog
}

// NewEngine validates and copies the methodology tables
func NewEngine(m Methodology, catalog ProductCatalog) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.Limestone.Validate(); err != nil {
		return nil, fmt.Errorf("limestone: %w", err)
	}
	if err := catalog.Dolomite.Validate(); err != nil {
		return nil, fmt.Errorf("dolomite: %w", err)
	}
	return &Engine{m: m.clone(), catalog: catalog}, nil
}

// MustDefaultEngine builds an engine from the built-in tables
func MustDefaultEngine() *Engine {
	e, err := NewEngine(DefaultMethodology(), DefaultCatalog())
	if err != nil {
		panic(err)
	}
	return e
}

// Methodology returns a copy of the engine tables
func (e *Engine) Methodology() Methodology {
	return e.m.clone()
}

// Catalog returns the reference products
func (e *Engine) Catalog() ProductCatalog {
	return e.catalog
}

// EffectiveNeutralizingValue is CaO% + MgO% x factor, expressed as a fraction
func EffectiveNeutralizingValue(p LimingProduct, mgoFactor float64) float64 {
	return (p.CaOContent + p.MgOContent*mgoFactor) / 100
}

// ENV applies the engine's MgO factor
func (e *Engine) ENV(p LimingProduct) float64 {
	return EffectiveNeutralizingValue(p, e.m.MgOFactor)
}

// PHResponse is the pH rise produced by effectiveCaO t/ha on a soil at pHBefore.
//
//	delta = (ceiling - pHBefore) * (1 - exp(-effectiveCaO / buffer[texture]))
//
// Monotone in dose, concave, shrinking as pHBefore nears the ceiling and
// never reaching it.
func (e *Engine) PHResponse(effectiveCaO float64, texture SoilTexture, pHBefore float64) float64 {
	headroom := e.m.PHCeiling - pHBefore
	if effectiveCaO <= 0 || headroom <= 0 {
		return 0
	}
	buffer := e.m.BufferCapacity[texture]
	if buffer <= 0 {
		return 0
	}
	return headroom * (1 - math.Exp(-effectiveCaO/buffer))
}

// PHAfter applies the response curve and caps at the ceiling
func (e *Engine) PHAfter(effectiveCaO float64, texture SoilTexture, pHBefore float64) float64 {
	return math.Min(pHBefore+e.PHResponse(effectiveCaO, texture, pHBefore), e.m.PHCeiling)
}

// Acidify returns pH after the given years without correction, floored
func (e *Engine) Acidify(pH float64, years int, texture SoilTexture) float64 {
	if years <= 0 {
		return pH
	}
	return math.Max(pH-float64(years)*e.m.AcidificationRate[texture], e.m.PHFloor)
}

// TargetPH returns the correction target for texture and land use
func (e *Engine) TargetPH(texture SoilTexture, landUse LandUse) float64 {
	return e.m.TargetPH[landUse][texture]
}

// DoseCap returns the single-application bounds for texture
func (e *Engine) DoseCap(texture SoilTexture) DoseCap {
	return e.m.DoseCaps[texture]
}

// SeverityFor grades pH against the methodology's severity bands and the target
func (e *Engine) SeverityFor(pH, target float64) SeverityTier {
	bands := e.m.SeverityBands
	switch {
	case pH < bands[0]:
		return TierCriticalUrgent
	case pH < bands[1]:
		return TierUrgent
	case pH < bands[2]:
		return TierIntensive
	case pH < bands[3]:
		return TierStandard
	case pH < target:
		return TierMaintenance
	default:
		return TierPreventive
	}
}

func (e *Engine) checkPH(field string, pH float64) error {
	if math.IsNaN(pH) || pH < e.m.PlausiblePH[0] || pH > e.m.PlausiblePH[1] {
		return &FieldError{
			Field:  field,
			Reason: fmt.Sprintf("must be between %.1f and %.1f", e.m.PlausiblePH[0], e.m.PlausiblePH[1]),
		}
	}
	return nil
}

func checkTexture(t SoilTexture) error {
	if !t.Valid() {
		return &FieldError{Field: "soil_texture", Reason: fmt.Sprintf("unknown texture %q", t)}
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
