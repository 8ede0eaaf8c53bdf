package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agrolime/liming-portal-backend/internal/apierror"
)

var ErrNotFound = apierror.ErrNotFound

// Repository persists the product catalog
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	GetByKind(ctx context.Context, kind Kind) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Upsert(ctx context.Context, p *Product) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a catalog repository over gorm
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the product table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Product{})
}

func (r *gormRepository) Create(ctx context.Context, p *Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormRepository) GetByName(ctx context.Context, name string) (*Product, error) {
	return r.first(ctx, "name = ?", name)
}

// GetByKind returns the oldest product of a kind
func (r *gormRepository) GetByKind(ctx context.Context, kind Kind) (*Product, error) {
	return r.first(ctx, "kind = ?", kind)
}

func (r *gormRepository) first(ctx context.Context, query string, arg any) (*Product, error) {
	var p Product
	err := r.db.WithContext(ctx).Order("created_at ASC").First(&p, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *gormRepository) List(ctx context.Context) ([]*Product, error) {
	var out []*Product
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

// Upsert inserts a product or updates the one with the same name
func (r *gormRepository) Upsert(ctx context.Context, p *Product) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "cao_content", "mgo_content", "price_per_ton", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}
