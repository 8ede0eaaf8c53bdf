package calculator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/internal/planning"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// ProductSource supplies the limestone and dolomite to choose between
type ProductSource interface {
	Reference(ctx context.Context) (agronomy.ProductCatalog, error)
}

// StaticProducts serves a fixed catalog, for callers without a database
type StaticProducts agronomy.ProductCatalog

// Reference returns the fixed catalog
func (s StaticProducts) Reference(context.Context) (agronomy.ProductCatalog, error) {
	return agronomy.ProductCatalog(s), nil
}

// Request is one guided calculator submission
type Request struct {
	SoilTexture  string  `json:"soil_texture" binding:"required"`
	LandUse      string  `json:"land_use"`
	AreaHa       float64 `json:"area_ha"`
	PH           float64 `json:"ph" binding:"required"`
	P            float64 `json:"p"`
	K            float64 `json:"k"`
	Mg           float64 `json:"mg"`
	Ca           float64 `json:"ca"`
	S            float64 `json:"s"`
	StartYear    int     `json:"start_year"`
	SlotsPerYear int     `json:"slots_per_year"`
}

// ScheduleRow is one projected application of the report
type ScheduleRow struct {
	Year      int                `json:"year"`
	Season    planning.Season    `json:"season"`
	Product   string             `json:"product"`
	DosePerHa float64            `json:"dose_per_ha"`
	TotalDose float64            `json:"total_dose"`
	CaOPerHa  float64            `json:"cao_per_ha"`
	MgOPerHa  float64            `json:"mgo_per_ha"`
	PHBefore  float64            `json:"ph_before"`
	PHAfter   float64            `json:"ph_after"`
	Note      string             `json:"note"`
	Warnings  []agronomy.Warning `json:"warnings"`
}

// Report is everything the calculator derives from one reading
type Report struct {
	SoilTexture     agronomy.SoilTexture      `json:"soil_texture"`
	LandUse         agronomy.LandUse          `json:"land_use"`
	AreaHa          float64                   `json:"area_ha"`
	Classifications []agronomy.Classification `json:"classifications"`
	Deficient       []agronomy.Nutrient       `json:"deficient"`
	Need            agronomy.LimingNeed       `json:"liming_need"`
	Selection       agronomy.ProductSelection `json:"product_selection"`
	Schedule        []ScheduleRow             `json:"schedule"`
	FinalPH         float64                   `json:"final_ph"`
	TotalProduct    float64                   `json:"total_product"`
	TotalCost       float64                   `json:"total_cost"`
	Warnings        []agronomy.Warning        `json:"warnings"`
}

// Service produces guided calculator reports
type Service struct {
	planner  *planning.Planner
	products ProductSource
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new calculator service
func NewService(planner *planning.Planner, products ProductSource, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		planner:  planner,
		products: products,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

// Report classifies the reading, sizes the liming need, picks the product
// and projects the applications that cover the need.
func (s *Service) Report(ctx context.Context, req Request) (*Report, error) {
	engine := s.planner.Engine()
	texture, err := agronomy.ParseSoilTexture(req.SoilTexture)
	if err != nil {
		return nil, err
	}
	landUse, err := agronomy.ParseLandUse(req.LandUse)
	if err != nil {
		return nil, err
	}
	area := req.AreaHa
	if area < 0 {
		return nil, &agronomy.FieldError{Field: "area_ha", Reason: "must not be negative"}
	}
	if area == 0 {
		area = 1
	}

	reading := agronomy.Reading{PH: req.PH, P: req.P, K: req.K, Mg: req.Mg, Ca: req.Ca, S: req.S}
	res := engine.ValidateReading(reading)
	if !res.IsValid {
		return nil, &parcels.ValidationError{Results: res}
	}
	rep, err := s.report(ctx, reading, texture, landUse, area, req, res.Warnings)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCalculatorReport()
	return rep, nil
}

func (s *Service) report(ctx context.Context, reading agronomy.Reading, texture agronomy.SoilTexture, landUse agronomy.LandUse, area float64, req Request, warnings []agronomy.Warning) (*Report, error) {
	engine := s.planner.Engine()
	classes, err := engine.ClassifyReading(reading, texture)
	if err != nil {
		return nil, err
	}
	need, err := engine.ComputeLimingNeed(reading.PH, texture, landUse)
	if err != nil {
		return nil, err
	}
	mg, err := engine.Classify(agronomy.NutrientMg, reading.Mg, texture)
	if err != nil {
		return nil, err
	}
	ref, err := s.products.Reference(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference products: %w", err)
	}
	sel, err := engine.SelectProductFrom(ref, mg, need.TotalCaOPerHa)
	if err != nil {
		return nil, err
	}

	startYear := req.StartYear
	if startYear == 0 {
		startYear = s.now().Year()
	}
	apps, err := s.planner.BuildPlan(planning.BuildRequest{
		Need:         need,
		Product:      sel.Primary.Product,
		StartYear:    startYear,
		SlotsPerYear: req.SlotsPerYear,
		Params: planning.RecalcParams{
			Texture:    texture,
			TargetPH:   need.TargetPH,
			StartPH:    reading.PH,
			AreaHa:     area,
			MgCategory: mg,
		},
	})
	if err != nil {
		return nil, err
	}

	rep := &Report{
		SoilTexture:     texture,
		LandUse:         landUse,
		AreaHa:          area,
		Classifications: classes,
		Deficient:       []agronomy.Nutrient{},
		Need:            need,
		Selection:       sel,
		Schedule:        make([]ScheduleRow, 0, len(apps)),
		FinalPH:         reading.PH,
		Warnings:        warnings,
	}
	for _, c := range classes {
		if c.Nutrient != agronomy.NutrientPH && c.Category.Deficient() {
			rep.Deficient = append(rep.Deficient, c.Nutrient)
		}
	}
	for _, a := range apps {
		rep.Schedule = append(rep.Schedule, ScheduleRow{
			Year:      a.Year,
			Season:    a.Season,
			Product:   a.ProductName,
			DosePerHa: a.DosePerHa,
			TotalDose: a.TotalDose,
			CaOPerHa:  a.CaOPerHa,
			MgOPerHa:  a.MgOPerHa,
			PHBefore:  a.PHBefore,
			PHAfter:   a.PHAfter,
			Note:      a.Note,
			Warnings:  []agronomy.Warning(a.Warnings),
		})
		rep.FinalPH = a.PHAfter
		rep.TotalProduct += a.TotalDose
		rep.TotalCost += a.TotalDose * a.PricePerTon
	}
	rep.TotalProduct = round2(rep.TotalProduct)
	rep.TotalCost = round2(rep.TotalCost)

	s.logger.Debug("Calculator report produced",
		zap.String("texture", string(texture)),
		zap.Float64("ph", reading.PH),
		zap.String("severity", string(need.Severity)),
		zap.Int("applications", len(apps)))
	return rep, nil
}

// Simulate grades a single proposed dose; the area defaults to one hectare
func (s *Service) Simulate(in agronomy.SimulationInput) (agronomy.SimulationResult, error) {
	if in.AreaHa == 0 {
		in.AreaHa = 1
	}
	return s.planner.Engine().SimulateApplication(in)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
