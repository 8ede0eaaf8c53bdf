package economics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/apierror"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// ParcelSource lists stored parcels and their latest lab pH
type ParcelSource interface {
	ListParcels(ctx context.Context, filter parcels.ParcelFilter) ([]*parcels.Parcel, error)
	LatestReading(ctx context.Context, parcelID uuid.UUID) (*parcels.NutrientReading, error)
}

// ProductSource resolves catalog products by name
type ProductSource interface {
	FindProduct(ctx context.Context, name string) (agronomy.LimingProduct, error)
}

// EstimateRequest overrides the configured prices; with no parcels given
// every stored parcel with a reading is estimated.
type EstimateRequest struct {
	Parcels             []ParcelInput           `json:"parcels"`
	FertilizerCostPerHa *float64                `json:"fertilizer_cost_per_ha"`
	RevenuePerHa        *float64                `json:"revenue_per_ha"`
	LimingCostPerTon    *float64                `json:"liming_cost_per_ton"`
	ProductName         string                  `json:"product_name"`
	Product             *agronomy.LimingProduct `json:"product"`
	SortBy              SortColumn              `json:"sort_by"`
	Descending          bool                    `json:"descending"`
}

// PriceRequest asks for a break-even service price
type PriceRequest struct {
	TotalCost         float64 `json:"total_cost"`
	TargetProfitPerHa float64 `json:"target_profit_per_ha"`
	AreaHa            float64 `json:"area_ha"`
}

// PriceResult is the recommended price per hectare and in total
type PriceResult struct {
	PricePerHa float64 `json:"price_per_ha"`
	TotalPrice float64 `json:"total_price"`
	Margin     float64 `json:"margin"`
}

// Service estimates acidity losses for request or stored parcels
type Service struct {
	estimator *Estimator
	parcels   ParcelSource
	products  ProductSource
	defaults  Params
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewService creates a new economics service
func NewService(estimator *Estimator, parcelSource ParcelSource, products ProductSource, defaults Params, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		estimator: estimator,
		parcels:   parcelSource,
		products:  products,
		defaults:  defaults,
		metrics:   collector,
		logger:    logger,
	}
}

// Defaults returns the configured prices
func (s *Service) Defaults() Params {
	return s.defaults
}

// Estimate runs the loss estimator and sorts the parcel rows
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	params := s.defaults
	if req.FertilizerCostPerHa != nil {
		params.FertilizerCostPerHa = *req.FertilizerCostPerHa
	}
	if req.RevenuePerHa != nil {
		params.RevenuePerHa = *req.RevenuePerHa
	}
	if req.LimingCostPerTon != nil {
		params.LimingCostPerTon = *req.LimingCostPerTon
	}
	switch {
	case req.Product != nil:
		params.Product = req.Product
	case req.ProductName != "":
		p, err := s.products.FindProduct(ctx, req.ProductName)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", req.ProductName, err)
		}
		params.Product = &p
	}

	inputs := req.Parcels
	if len(inputs) == 0 {
		stored, err := s.StoredParcels(ctx)
		if err != nil {
			return nil, err
		}
		inputs = stored
	}

	est, err := s.estimator.EstimateLoss(inputs, params)
	if err != nil {
		return nil, err
	}
	if err := SortParcels(est.Parcels, req.SortBy, req.Descending); err != nil {
		return nil, err
	}
	s.metrics.RecordLossEstimate()
	s.logger.Info("Loss estimated",
		zap.Int("parcels", len(est.Parcels)),
		zap.Float64("total_loss", est.Aggregate.TotalLoss),
		zap.Float64("liming_cost", est.Aggregate.LimingCost))
	return est, nil
}

// StoredParcels turns every stored parcel with a reading into an input row
func (s *Service) StoredParcels(ctx context.Context) ([]ParcelInput, error) {
	list, err := s.parcels.ListParcels(ctx, parcels.ParcelFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]ParcelInput, 0, len(list))
	for _, p := range list {
		reading, err := s.parcels.LatestReading(ctx, p.ID)
		if errors.Is(err, apierror.ErrNotFound) {
			s.logger.Debug("Parcel skipped without reading", zap.String("parcel_id", p.ID.String()))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ParcelInput{
			ID:          p.ID,
			Name:        p.Name,
			AreaHa:      p.AreaHa,
			SoilTexture: p.SoilTexture,
			LandUse:     p.LandUse,
			PH:          reading.PH,
		})
	}
	return out, nil
}

// RecommendedPrice back-solves a price from a profit target
func (s *Service) RecommendedPrice(req PriceRequest) (*PriceResult, error) {
	perHa, err := RecommendedPrice(req.TotalCost, req.TargetProfitPerHa, req.AreaHa)
	if err != nil {
		return nil, err
	}
	total := round2(perHa * req.AreaHa)
	return &PriceResult{
		PricePerHa: perHa,
		TotalPrice: total,
		Margin:     round2(total - req.TotalCost),
	}, nil
}
