package planning

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// Season orders applications within a year
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// Order returns the position of s within a year
func (s Season) Order() int {
	switch s {
	case SeasonSpring:
		return 1
	case SeasonSummer:
		return 2
	case SeasonAutumn:
		return 3
	}
	return 0
}

// Valid reports whether s is a known season
func (s Season) Valid() bool { return s.Order() > 0 }

// ParseSeason accepts the canonical names and the Czech field-book aliases
func ParseSeason(v string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "spring", "jaro":
		return SeasonSpring, nil
	case "summer", "leto", "léto":
		return SeasonSummer, nil
	case "autumn", "fall", "podzim":
		return SeasonAutumn, nil
	}
	return "", &agronomy.FieldError{Field: "season", Reason: fmt.Sprintf("unknown season %q", v)}
}

// UnmarshalText lets request bodies use any accepted alias
func (s *Season) UnmarshalText(b []byte) error {
	parsed, err := ParseSeason(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ApplicationStatus is the lifecycle of one application
type ApplicationStatus string

const (
	StatusPlanned   ApplicationStatus = "planned"
	StatusOrdered   ApplicationStatus = "ordered"
	StatusApplied   ApplicationStatus = "applied"
	StatusCancelled ApplicationStatus = "cancelled"
)

// Active reports whether the application takes part in pH projection
func (s ApplicationStatus) Active() bool {
	return s == StatusPlanned || s == StatusOrdered
}

// PlanStatus is the lifecycle of a plan
type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanApproved PlanStatus = "approved"
)

// LimingPlan is the ordered multi-year liming schedule of one parcel
type LimingPlan struct {
	ID           uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	ParcelID     uuid.UUID             `gorm:"type:uuid;not null;index" json:"parcel_id"`
	ParcelName   string                `json:"parcel_name"`
	AreaHa       float64               `gorm:"not null" json:"area_ha"`
	SoilTexture  agronomy.SoilTexture  `gorm:"type:varchar(16);not null" json:"soil_texture"`
	LandUse      agronomy.LandUse      `gorm:"type:varchar(16);not null" json:"land_use"`
	StartPH      float64               `gorm:"column:start_ph;not null" json:"start_ph"`
	TargetPH     float64               `gorm:"column:target_ph;not null" json:"target_ph"`
	TotalCaONeed float64               `gorm:"column:total_cao_need" json:"total_cao_need"`
	MgCategory   agronomy.Category     `json:"mg_category"`
	Severity     agronomy.SeverityTier `gorm:"type:varchar(24)" json:"severity"`
	Methodology  string                `json:"methodology"`
	Status       PlanStatus            `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	Version      int                   `gorm:"not null;default:1" json:"version"`
	ReadingID    *uuid.UUID            `gorm:"type:uuid" json:"reading_id,omitempty"`
	Applications []LimingApplication   `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"applications"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	DeletedAt    gorm.DeletedAt        `gorm:"index" json:"-"`
}

// BeforeCreate assigns an id when the caller did not
func (p *LimingPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TotalDose is the sum of product doses of the non-cancelled applications, t/ha
func (p *LimingPlan) TotalDose() float64 {
	var sum float64
	for _, a := range p.Applications {
		if a.Status != StatusCancelled {
			sum += a.DosePerHa
		}
	}
	return sum
}

// TotalProduct is the product mass over the whole parcel, t
func (p *LimingPlan) TotalProduct() float64 {
	var sum float64
	for _, a := range p.Applications {
		if a.Status != StatusCancelled {
			sum += a.TotalDose
		}
	}
	return sum
}

// Params returns the recalculation inputs recorded on the plan
func (p *LimingPlan) Params() RecalcParams {
	return RecalcParams{
		Texture:    p.SoilTexture,
		TargetPH:   p.TargetPH,
		StartPH:    p.StartPH,
		AreaHa:     p.AreaHa,
		MgCategory: p.MgCategory,
	}
}

// LimingApplication is one liming event of a plan. The product is stored as
// a snapshot so catalog edits never rewrite history.
type LimingApplication struct {
	ID                uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID            uuid.UUID                             `gorm:"type:uuid;not null;index" json:"plan_id"`
	Sequence          int                                   `gorm:"not null" json:"sequence"`
	Year              int                                   `gorm:"not null" json:"year"`
	Season            Season                                `gorm:"type:varchar(16);not null" json:"season"`
	ProductName       string                                `gorm:"not null" json:"product_name"`
	CaOContent        float64                               `gorm:"column:cao_content" json:"cao_content"`
	MgOContent        float64                               `gorm:"column:mgo_content" json:"mgo_content"`
	PricePerTon       float64                               `json:"price_per_ton"`
	DosePerHa         float64                               `json:"dose_per_ha"`
	TotalDose         float64                               `json:"total_dose"`
	CaOPerHa          float64                               `gorm:"column:cao_per_ha" json:"cao_per_ha"`
	MgOPerHa          float64                               `gorm:"column:mgo_per_ha" json:"mgo_per_ha"`
	EffectiveCaOPerHa float64                               `gorm:"column:effective_cao_per_ha" json:"effective_cao_per_ha"`
	PHBefore          float64                               `gorm:"column:ph_before" json:"ph_before"`
	PHAfter           float64                               `gorm:"column:ph_after" json:"ph_after"`
	Note              string                                `json:"note"`
	Warnings          datatypes.JSONSlice[agronomy.Warning] `json:"warnings"`
	Status            ApplicationStatus                     `gorm:"type:varchar(16);not null;default:'planned'" json:"status"`
	CreatedAt         time.Time                             `json:"created_at"`
	UpdatedAt         time.Time                             `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (a *LimingApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Product rebuilds the catalog entry the application was planned with
func (a *LimingApplication) Product() agronomy.LimingProduct {
	return agronomy.LimingProduct{
		Name:        a.ProductName,
		CaOContent:  a.CaOContent,
		MgOContent:  a.MgOContent,
		PricePerTon: a.PricePerTon,
	}
}

// SetProduct replaces the product snapshot
func (a *LimingApplication) SetProduct(p agronomy.LimingProduct) {
	a.ProductName = p.Name
	a.CaOContent = p.CaOContent
	a.MgOContent = p.MgOContent
	a.PricePerTon = p.PricePerTon
}

// Cost is the product cost of the application over the whole parcel
func (a *LimingApplication) Cost() float64 {
	return a.TotalDose * a.PricePerTon
}

// PlanFilter narrows plan listings
type PlanFilter struct {
	ParcelID *uuid.UUID
	Status   *PlanStatus
	Limit    int
	Offset   int
}
