package parcels

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agrolime/liming-portal-backend/internal/apierror"
)

var ErrNotFound = apierror.ErrNotFound

// Repository persists parcels and their readings. Readings can only be
// created and listed.
type Repository interface {
	CreateParcel(ctx context.Context, p *Parcel) error
	GetParcel(ctx context.Context, id uuid.UUID) (*Parcel, error)
	ListParcels(ctx context.Context, filter ParcelFilter) ([]*Parcel, error)
	UpdateParcel(ctx context.Context, p *Parcel) error
	CreateReading(ctx context.Context, r *NutrientReading) error
	ListReadings(ctx context.Context, parcelID uuid.UUID) ([]*NutrientReading, error)
	LatestReading(ctx context.Context, parcelID uuid.UUID) (*NutrientReading, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a parcel repository over gorm
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the parcel tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Parcel{}, &NutrientReading{})
}

func (r *gormRepository) CreateParcel(ctx context.Context, p *Parcel) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create parcel: %w", err)
	}
	return nil
}

func (r *gormRepository) GetParcel(ctx context.Context, id uuid.UUID) (*Parcel, error) {
	var p Parcel
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("parcel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parcel: %w", err)
	}
	return &p, nil
}

func (r *gormRepository) ListParcels(ctx context.Context, filter ParcelFilter) ([]*Parcel, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if filter.Texture != nil {
		query = query.Where("soil_texture = ?", *filter.Texture)
	}
	if filter.LandUse != nil {
		query = query.Where("land_use = ?", *filter.LandUse)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var out []*Parcel
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list parcels: %w", err)
	}
	return out, nil
}

func (r *gormRepository) UpdateParcel(ctx context.Context, p *Parcel) error {
	result := r.db.WithContext(ctx).Model(p).Select("name", "area_ha", "soil_texture", "land_use", "geometry").Updates(p)
	if result.Error != nil {
		return fmt.Errorf("failed to update parcel: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("parcel %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (r *gormRepository) CreateReading(ctx context.Context, reading *NutrientReading) error {
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}
	return nil
}

func (r *gormRepository) ListReadings(ctx context.Context, parcelID uuid.UUID) ([]*NutrientReading, error) {
	var out []*NutrientReading
	err := r.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("sampled_at DESC, created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return out, nil
}

func (r *gormRepository) LatestReading(ctx context.Context, parcelID uuid.UUID) (*NutrientReading, error) {
	var reading NutrientReading
	err := r.db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Order("sampled_at DESC, created_at DESC").
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no reading for parcel %s: %w", parcelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return &reading, nil
}
