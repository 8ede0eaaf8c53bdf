package parcels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/pkg/geospatial"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// Requests

type CreateParcelRequest struct {
	Name        string          `json:"name" binding:"required"`
	AreaHa      float64         `json:"area_ha"`
	SoilTexture string          `json:"soil_texture" binding:"required"`
	LandUse     string          `json:"land_use"`
	Geometry    json.RawMessage `json:"geometry"` // GeoJSON
}

type UpdateParcelRequest struct {
	Name        *string          `json:"name"`
	AreaHa      *float64         `json:"area_ha"`
	SoilTexture *string          `json:"soil_texture"`
	LandUse     *string          `json:"land_use"`
	Geometry    *json.RawMessage `json:"geometry"`
}

type RecordReadingRequest struct {
	SampledAt  time.Time `json:"sampled_at"`
	PH         float64   `json:"ph"`
	P          float64   `json:"p"`
	K          float64   `json:"k"`
	Mg         float64   `json:"mg"`
	Ca         float64   `json:"ca"`
	S          float64   `json:"s"`
	Laboratory string    `json:"laboratory"`
}

// ValidationError carries every rejected field of a reading
type ValidationError struct {
	Results *agronomy.ValidationResults
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Results.Errors))
	for _, fe := range e.Results.Errors {
		parts = append(parts, fe.Error())
	}
	return "invalid reading: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return agronomy.ErrInputOutOfRange }

// Service manages parcels and their soil readings
type Service struct {
	repo    Repository
	engine  *agronomy.Engine
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new parcels service
func NewService(repo Repository, engine *agronomy.Engine, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		engine:  engine,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateParcel stores a parcel; the area is derived from the geometry when
// not supplied.
func (s *Service) CreateParcel(ctx context.Context, req CreateParcelRequest) (*Parcel, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &agronomy.FieldError{Field: "name", Reason: "is required"}
	}
	texture, err := agronomy.ParseSoilTexture(req.SoilTexture)
	if err != nil {
		return nil, err
	}
	landUse, err := agronomy.ParseLandUse(req.LandUse)
	if err != nil {
		return nil, err
	}
	if req.AreaHa < 0 {
		return nil, &agronomy.FieldError{Field: "area_ha", Reason: "must not be negative"}
	}

	parcel := &Parcel{
		Name:        strings.TrimSpace(req.Name),
		AreaHa:      req.AreaHa,
		SoilTexture: texture,
		LandUse:     landUse,
	}
	if len(req.Geometry) > 0 && string(req.Geometry) != "null" {
		if err := applyGeometry(parcel, req.Geometry, req.AreaHa == 0); err != nil {
			return nil, err
		}
	}
	if parcel.AreaHa <= 0 {
		return nil, &agronomy.FieldError{Field: "area_ha", Reason: "is required when no geometry is given"}
	}

	if err := s.repo.CreateParcel(ctx, parcel); err != nil {
		return nil, err
	}
	s.logger.Info("Parcel created",
		zap.String("parcel_id", parcel.ID.String()),
		zap.String("texture", string(texture)),
		zap.Float64("area_ha", parcel.AreaHa))
	return parcel, nil
}

func applyGeometry(p *Parcel, raw json.RawMessage, deriveArea bool) error {
	geom, err := geospatial.ParseGeoJSON(raw)
	if err != nil {
		return &agronomy.FieldError{Field: "geometry", Reason: err.Error()}
	}
	p.Geometry = []byte(raw)
	if deriveArea {
		p.AreaHa = geospatial.ConvertToHectares(geospatial.CalculateArea(geom))
	}
	return nil
}

// GetParcel returns a parcel by id
func (s *Service) GetParcel(ctx context.Context, id uuid.UUID) (*Parcel, error) {
	return s.repo.GetParcel(ctx, id)
}

// ListParcels returns parcels ordered by name
func (s *Service) ListParcels(ctx context.Context, filter ParcelFilter) ([]*Parcel, error) {
	return s.repo.ListParcels(ctx, filter)
}

// UpdateParcel changes parcel attributes. Existing plans keep the texture and
// area they were generated with.
func (s *Service) UpdateParcel(ctx context.Context, id uuid.UUID, req UpdateParcelRequest) (*Parcel, error) {
	parcel, err := s.repo.GetParcel(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, &agronomy.FieldError{Field: "name", Reason: "is required"}
		}
		parcel.Name = strings.TrimSpace(*req.Name)
	}
	if req.SoilTexture != nil {
		if parcel.SoilTexture, err = agronomy.ParseSoilTexture(*req.SoilTexture); err != nil {
			return nil, err
		}
	}
	if req.LandUse != nil {
		if parcel.LandUse, err = agronomy.ParseLandUse(*req.LandUse); err != nil {
			return nil, err
		}
	}
	if req.Geometry != nil {
		// Recalculate area
		if err := applyGeometry(parcel, *req.Geometry, req.AreaHa == nil); err != nil {
			return nil, err
		}
	}
	if req.AreaHa != nil {
		if *req.AreaHa <= 0 {
			return nil, &agronomy.FieldError{Field: "area_ha", Reason: "must be positive"}
		}
		parcel.AreaHa = *req.AreaHa
	}

	if err := s.repo.UpdateParcel(ctx, parcel); err != nil {
		return nil, err
	}
	return parcel, nil
}

// RecordReading validates and stores a lab reading. Non-blocking warnings
// are returned beside the stored record.
func (s *Service) RecordReading(ctx context.Context, parcelID uuid.UUID, req RecordReadingRequest) (*NutrientReading, []agronomy.Warning, error) {
	if _, err := s.repo.GetParcel(ctx, parcelID); err != nil {
		return nil, nil, err
	}

	values := agronomy.Reading{PH: req.PH, P: req.P, K: req.K, Mg: req.Mg, Ca: req.Ca, S: req.S}
	res := s.engine.ValidateReading(values)
	if !res.IsValid {
		for _, fe := range res.Errors {
			s.metrics.RecordRejectedReading(fe.Field)
		}
		s.logger.Warn("Reading rejected",
			zap.String("parcel_id", parcelID.String()),
			zap.Int("errors", len(res.Errors)))
		return nil, nil, &ValidationError{Results: res}
	}

	sampledAt := req.SampledAt
	if sampledAt.IsZero() {
		sampledAt = s.now()
	}
	if sampledAt.After(s.now().Add(24 * time.Hour)) {
		return nil, nil, &agronomy.FieldError{Field: "sampled_at", Reason: "must not be in the future"}
	}

	reading := &NutrientReading{
		ParcelID:   parcelID,
		SampledAt:  sampledAt.UTC(),
		PH:         req.PH,
		P:          req.P,
		K:          req.K,
		Mg:         req.Mg,
		Ca:         req.Ca,
		S:          req.S,
		Laboratory: req.Laboratory,
	}
	if err := s.repo.CreateReading(ctx, reading); err != nil {
		return nil, nil, err
	}
	s.metrics.RecordReading()
	s.logger.Info("Reading recorded",
		zap.String("parcel_id", parcelID.String()),
		zap.String("reading_id", reading.ID.String()),
		zap.Float64("ph", reading.PH))
	return reading, res.Warnings, nil
}

// ListReadings returns the readings of a parcel, newest first
func (s *Service) ListReadings(ctx context.Context, parcelID uuid.UUID) ([]*NutrientReading, error) {
	if _, err := s.repo.GetParcel(ctx, parcelID); err != nil {
		return nil, err
	}
	return s.repo.ListReadings(ctx, parcelID)
}

// LatestReading returns the most recent reading of a parcel
func (s *Service) LatestReading(ctx context.Context, parcelID uuid.UUID) (*NutrientReading, error) {
	return s.repo.LatestReading(ctx, parcelID)
}

// Assess classifies the latest reading and derives the liming need and the
// product recommendation from it.
func (s *Service) Assess(ctx context.Context, parcelID uuid.UUID) (*Assessment, error) {
	parcel, err := s.repo.GetParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	reading, err := s.repo.LatestReading(ctx, parcelID)
	if err != nil {
		return nil, err
	}

	classes, err := s.engine.ClassifyReading(reading.Values(), parcel.SoilTexture)
	if err != nil {
		return nil, fmt.Errorf("classify reading %s: %w", reading.ID, err)
	}
	need, err := s.engine.ComputeLimingNeed(reading.PH, parcel.SoilTexture, parcel.LandUse)
	if err != nil {
		return nil, err
	}
	mg, err := s.engine.Classify(agronomy.NutrientMg, reading.Mg, parcel.SoilTexture)
	if err != nil {
		return nil, err
	}
	selection, err := s.engine.SelectProduct(mg, need.TotalCaOPerHa)
	if err != nil {
		return nil, err
	}

	return &Assessment{
		Parcel:          parcel,
		Reading:         reading,
		Classifications: classes,
		Need:            need,
		Selection:       selection,
	}, nil
}
