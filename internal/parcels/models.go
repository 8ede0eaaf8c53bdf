package parcels

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// Parcel is a managed field block
type Parcel struct {
	ID          uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string               `gorm:"not null" json:"name"`
	AreaHa      float64              `gorm:"not null" json:"area_ha"`
	SoilTexture agronomy.SoilTexture `gorm:"type:varchar(16);not null" json:"soil_texture"`
	LandUse     agronomy.LandUse     `gorm:"type:varchar(16);not null;default:'arable'" json:"land_use"`
	Geometry    datatypes.JSON       `json:"geometry,omitempty"` // GeoJSON
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	DeletedAt   gorm.DeletedAt       `gorm:"index" json:"-"`
}

// BeforeCreate assigns an id when the caller did not
func (p *Parcel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NutrientReading is one lab result of a parcel. Readings are immutable.
type NutrientReading struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ParcelID   uuid.UUID `gorm:"type:uuid;not null;index" json:"parcel_id"`
	SampledAt  time.Time `gorm:"not null;index" json:"sampled_at"`
	PH         float64   `gorm:"column:ph;not null" json:"ph"`
	P          float64   `gorm:"column:p" json:"p"`
	K          float64   `gorm:"column:k" json:"k"`
	Mg         float64   `gorm:"column:mg" json:"mg"`
	Ca         float64   `gorm:"column:ca" json:"ca"`
	S          float64   `gorm:"column:s" json:"s"`
	Laboratory string    `json:"laboratory,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate assigns an id when the caller did not
func (r *NutrientReading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Values returns the engine view of the reading
func (r *NutrientReading) Values() agronomy.Reading {
	return agronomy.Reading{PH: r.PH, P: r.P, K: r.K, Mg: r.Mg, Ca: r.Ca, S: r.S}
}

// Assessment is the latest reading of a parcel with everything derived from it
type Assessment struct {
	Parcel          *Parcel                   `json:"parcel"`
	Reading         *NutrientReading          `json:"reading"`
	Classifications []agronomy.Classification `json:"classifications"`
	Need            agronomy.LimingNeed       `json:"liming_need"`
	Selection       agronomy.ProductSelection `json:"product_selection"`
}

// ParcelFilter narrows parcel listings
type ParcelFilter struct {
	Texture *agronomy.SoilTexture
	LandUse *agronomy.LandUse
	Limit   int
	Offset  int
}
