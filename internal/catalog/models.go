package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// Kind marks the selector role of a product
type Kind string

const (
	KindLimestone Kind = "limestone"
	KindDolomite  Kind = "dolomite"
	KindOther     Kind = "other"
)

// Product is a stored liming product
type Product struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	Kind        Kind           `gorm:"type:varchar(16);not null;default:'other'" json:"kind"`
	CaOContent  float64        `gorm:"column:cao_content;not null" json:"cao_content"`
	MgOContent  float64        `gorm:"column:mgo_content;not null" json:"mgo_content"`
	PricePerTon float64        `json:"price_per_ton"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns an id when the caller did not
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Liming returns the engine view of the product
func (p *Product) Liming() agronomy.LimingProduct {
	return agronomy.LimingProduct{
		Name:        p.Name,
		CaOContent:  p.CaOContent,
		MgOContent:  p.MgOContent,
		PricePerTon: p.PricePerTon,
	}
}

// ProductView adds the derived neutralizing value to a stored product
type ProductView struct {
	*Product
	ENV float64 `json:"env"`
}
