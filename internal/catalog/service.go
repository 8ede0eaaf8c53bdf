package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
)

// CreateProductRequest is the body of a new catalog entry
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Kind        Kind    `json:"kind"`
	CaOContent  float64 `json:"cao_content"`
	MgOContent  float64 `json:"mgo_content"`
	PricePerTon float64 `json:"price_per_ton"`
}

// Service manages the product catalog
type Service struct {
	repo   Repository
	engine *agronomy.Engine
	logger *zap.Logger
}

// NewService creates a new catalog service
func NewService(repo Repository, engine *agronomy.Engine, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		logger: logger,
	}
}

// Seed stores the engine's reference products unless a product of the same
// kind already exists. Stored prices are never overwritten.
func (s *Service) Seed(ctx context.Context) error {
	ref := s.engine.Catalog()
	seeds := []struct {
		kind    Kind
		product agronomy.LimingProduct
	}{
		{KindLimestone, ref.Limestone},
		{KindDolomite, ref.Dolomite},
	}
	for _, seed := range seeds {
		_, err := s.repo.GetByKind(ctx, seed.kind)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		p := &Product{
			Name:        seed.product.Name,
			Kind:        seed.kind,
			CaOContent:  seed.product.CaOContent,
			MgOContent:  seed.product.MgOContent,
			PricePerTon: seed.product.PricePerTon,
		}
		if err := s.repo.Upsert(ctx, p); err != nil {
			return err
		}
		s.logger.Info("Seeded catalog product", zap.String("name", p.Name), zap.String("kind", string(p.Kind)))
	}
	return nil
}

// CreateProduct validates and stores a product
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductView, error) {
	if req.Kind == "" {
		req.Kind = KindOther
	}
	switch req.Kind {
	case KindLimestone, KindDolomite, KindOther:
	default:
		return nil, &agronomy.FieldError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", req.Kind)}
	}

	p := &Product{
		Name:        strings.TrimSpace(req.Name),
		Kind:        req.Kind,
		CaOContent:  req.CaOContent,
		MgOContent:  req.MgOContent,
		PricePerTon: req.PricePerTon,
	}
	if err := p.Liming().Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	return s.view(p), nil
}

// GetProduct returns a product by id
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(p), nil
}

// ListProducts returns every product ordered by name
func (s *Service) ListProducts(ctx context.Context) ([]*ProductView, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*ProductView, len(products))
	for i, p := range products {
		out[i] = s.view(p)
	}
	return out, nil
}

// FindProduct resolves a product by name for plan edits
func (s *Service) FindProduct(ctx context.Context, name string) (agronomy.LimingProduct, error) {
	p, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return agronomy.LimingProduct{}, err
	}
	return p.Liming(), nil
}

// Reference returns the limestone and dolomite the selector chooses from,
// falling back to the engine defaults for a kind with no stored product.
func (s *Service) Reference(ctx context.Context) (agronomy.ProductCatalog, error) {
	ref := s.engine.Catalog()
	if p, err := s.repo.GetByKind(ctx, KindLimestone); err == nil {
		ref.Limestone = p.Liming()
	} else if !errors.Is(err, ErrNotFound) {
		return agronomy.ProductCatalog{}, err
	}
	if p, err := s.repo.GetByKind(ctx, KindDolomite); err == nil {
		ref.Dolomite = p.Liming()
	} else if !errors.Is(err, ErrNotFound) {
		return agronomy.ProductCatalog{}, err
	}
	return ref, nil
}

func (s *Service) view(p *Product) *ProductView {
	return &ProductView{Product: p, ENV: s.engine.ENV(p.Liming())}
}
