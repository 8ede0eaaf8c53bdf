package reports

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/apierror"
	"agrolime/liming-portal-backend/internal/economics"
	"agrolime/liming-portal-backend/internal/reports/export"
	"agrolime/liming-portal-backend/pkg/metrics"
)

// EstimateSource produces loss estimates for the economics export
type EstimateSource interface {
	Estimate(ctx context.Context, req economics.EstimateRequest) (*economics.Estimate, error)
}

// Service builds export tables and renders them
type Service struct {
	readModel ReadModel
	estimates EstimateSource
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new reports service
func NewService(readModel ReadModel, estimates EstimateSource, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		readModel: readModel,
		estimates: estimates,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

var planColumns = []export.Column{
	{Key: "sequence", Label: "#", Numeric: true},
	{Key: "year", Label: "Year", Numeric: true},
	{Key: "season", Label: "Season"},
	{Key: "product", Label: "Product"},
	{Key: "dose_per_ha", Label: "Dose (t/ha)", Precision: 2, Numeric: true},
	{Key: "total_dose", Label: "Total (t)", Precision: 2, Numeric: true},
	{Key: "cao_per_ha", Label: "CaO (t/ha)", Precision: 2, Numeric: true},
	{Key: "mgo_per_ha", Label: "MgO (t/ha)", Precision: 2, Numeric: true},
	{Key: "effective_cao_per_ha", Label: "Effective CaO (t/ha)", Precision: 2, Numeric: true},
	{Key: "ph_before", Label: "pH before", Precision: 2, Numeric: true},
	{Key: "ph_after", Label: "pH after", Precision: 2, Numeric: true},
	{Key: "cost", Label: "Cost", Precision: 2, Numeric: true},
	{Key: "status", Label: "Status"},
	{Key: "note", Label: "Note"},
}

// PlanTable renders one plan: a header block with the parcel and totals and
// one row per application in sequence order.
func (s *Service) PlanTable(ctx context.Context, id uuid.UUID) (*export.Table, error) {
	plan, err := s.readModel.PlanHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	apps, err := s.readModel.PlanApplications(ctx, id)
	if err != nil {
		return nil, err
	}

	var totalDose, totalProduct, totalCost float64
	finalPH := plan.StartPH
	rows := make([]map[string]any, 0, len(apps))
	for _, a := range apps {
		cost := a.TotalDose * a.PricePerTon
		if !a.Cancelled() {
			totalDose += a.DosePerHa
			totalProduct += a.TotalDose
			totalCost += cost
			finalPH = a.PHAfter
		}
		rows = append(rows, map[string]any{
			"sequence":             a.Sequence,
			"year":                 a.Year,
			"season":               a.Season,
			"product":              a.ProductName,
			"dose_per_ha":          a.DosePerHa,
			"total_dose":           a.TotalDose,
			"cao_per_ha":           a.CaOPerHa,
			"mgo_per_ha":           a.MgOPerHa,
			"effective_cao_per_ha": a.EffectiveCaOPerHa,
			"ph_before":            a.PHBefore,
			"ph_after":             a.PHAfter,
			"cost":                 cost,
			"status":               a.Status,
			"note":                 a.Note,
		})
	}

	return &export.Table{
		Name:     "Plan " + plan.ParcelName,
		Title:    "Liming plan: " + plan.ParcelName,
		Subtitle: fmt.Sprintf("%s soil, %s, methodology %s", plan.SoilTexture, plan.LandUse, plan.Methodology),
		Summary: []export.SummaryItem{
			{Label: "Parcel", Value: plan.ParcelName},
			{Label: "Area (ha)", Value: plan.AreaHa},
			{Label: "Start pH", Value: plan.StartPH},
			{Label: "Target pH", Value: plan.TargetPH},
			{Label: "Final pH", Value: finalPH},
			{Label: "CaO need (t/ha)", Value: plan.TotalCaONeed},
			{Label: "Severity", Value: plan.Severity},
			{Label: "Total dose (t/ha)", Value: round2(totalDose)},
			{Label: "Total product (t)", Value: round2(totalProduct)},
			{Label: "Total cost", Value: round2(totalCost)},
			{Label: "Status", Value: plan.Status},
			{Label: "Version", Value: plan.Version},
		},
		Columns: planColumns,
		Rows:    rows,
	}, nil
}

// PortfolioTable lists every plan with its totals
func (s *Service) PortfolioTable(ctx context.Context, filter SummaryFilter) (*export.Table, error) {
	plans, err := s.readModel.PlanSummaries(ctx, filter)
	if err != nil {
		return nil, err
	}

	var area, product, cost float64
	rows := make([]map[string]any, 0, len(plans))
	for _, p := range plans {
		area += p.AreaHa
		product += p.TotalProduct
		cost += p.TotalCost
		rows = append(rows, map[string]any{
			"parcel":        p.ParcelName,
			"area_ha":       p.AreaHa,
			"soil_texture":  p.SoilTexture,
			"start_ph":      p.StartPH,
			"target_ph":     p.TargetPH,
			"final_ph":      p.FinalPH,
			"severity":      p.Severity,
			"applications":  p.Applications,
			"total_dose":    p.TotalDose,
			"total_product": p.TotalProduct,
			"total_cost":    p.TotalCost,
			"status":        p.Status,
			"version":       p.Version,
		})
	}

	return &export.Table{
		Name:  "Plans",
		Title: "Liming plans overview",
		Summary: []export.SummaryItem{
			{Label: "Plans", Value: len(plans)},
			{Label: "Area (ha)", Value: round2(area)},
			{Label: "Total product (t)", Value: round2(product)},
			{Label: "Total cost", Value: round2(cost)},
		},
		Columns: []export.Column{
			{Key: "parcel", Label: "Parcel"},
			{Key: "area_ha", Label: "Area (ha)", Precision: 2, Numeric: true},
			{Key: "soil_texture", Label: "Texture"},
			{Key: "start_ph", Label: "Start pH", Precision: 2, Numeric: true},
			{Key: "target_ph", Label: "Target pH", Precision: 2, Numeric: true},
			{Key: "final_ph", Label: "Final pH", Precision: 2, Numeric: true},
			{Key: "severity", Label: "Severity"},
			{Key: "applications", Label: "Applications", Numeric: true},
			{Key: "total_dose", Label: "Dose (t/ha)", Precision: 2, Numeric: true},
			{Key: "total_product", Label: "Product (t)", Precision: 2, Numeric: true},
			{Key: "total_cost", Label: "Cost", Precision: 2, Numeric: true},
			{Key: "status", Label: "Status"},
			{Key: "version", Label: "Version", Numeric: true},
		},
		Rows: rows,
	}, nil
}

// LossTable renders an acidity loss estimate, one row per parcel
func (s *Service) LossTable(ctx context.Context, req economics.EstimateRequest) (*export.Table, error) {
	est, err := s.estimates.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(est.Parcels))
	for _, p := range est.Parcels {
		rows = append(rows, map[string]any{
			"parcel":          p.Name,
			"area_ha":         p.AreaHa,
			"soil_texture":    string(p.SoilTexture),
			"ph":              p.PH,
			"efficiency":      p.Efficiency * 100,
			"loss_per_ha":     p.LossPerHa,
			"total_loss":      p.TotalLoss,
			"cao_need_per_ha": p.CaONeedPerHa,
			"product_tons":    p.ProductTons,
			"liming_cost":     p.LimingCost,
			"payback_months":  p.PaybackMonths,
		})
	}

	agg := est.Aggregate
	return &export.Table{
		Name:     "Acidity losses",
		Title:    "Annual losses from soil acidity",
		Subtitle: fmt.Sprintf("Product %s, %.2f per t", est.Product.Name, est.Params.LimingCostPerTon),
		Summary: []export.SummaryItem{
			{Label: "Fertilizer cost per ha", Value: est.Params.FertilizerCostPerHa},
			{Label: "Revenue per ha", Value: est.Params.RevenuePerHa},
			{Label: "Area (ha)", Value: agg.AreaHa},
			{Label: "Nutrient efficiency (%)", Value: round2(agg.Efficiency * 100)},
			{Label: "Annual loss", Value: agg.TotalLoss},
			{Label: "Product (t)", Value: agg.ProductTons},
			{Label: "Liming cost", Value: agg.LimingCost},
			{Label: "Payback (months)", Value: agg.PaybackMonths},
		},
		Columns: []export.Column{
			{Key: "parcel", Label: "Parcel"},
			{Key: "area_ha", Label: "Area (ha)", Precision: 2, Numeric: true},
			{Key: "soil_texture", Label: "Texture"},
			{Key: "ph", Label: "pH", Precision: 2, Numeric: true},
			{Key: "efficiency", Label: "Efficiency (%)", Precision: 1, Numeric: true},
			{Key: "loss_per_ha", Label: "Loss per ha", Precision: 2, Numeric: true},
			{Key: "total_loss", Label: "Total loss", Precision: 2, Numeric: true},
			{Key: "cao_need_per_ha", Label: "CaO need (t/ha)", Precision: 2, Numeric: true},
			{Key: "product_tons", Label: "Product (t)", Precision: 2, Numeric: true},
			{Key: "liming_cost", Label: "Liming cost", Precision: 2, Numeric: true},
			{Key: "payback_months", Label: "Payback (months)", Precision: 1, Numeric: true},
		},
		Rows: rows,
	}, nil
}

// Export renders the tables to w. CSV writes them one after another, XLSX
// puts each on its own sheet and PDF each on its own page.
func (s *Service) Export(ctx context.Context, format ExportFormat, w io.Writer, tables ...*export.Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("nothing to export")
	}

	var err error
	switch format {
	case ExportFormatCSV:
		err = s.exportCSV(w, tables)
	case ExportFormatExcel:
		err = s.exportExcel(w, tables)
	case ExportFormatPDF:
		err = s.exportPDF(w, tables)
	default:
		err = apierror.NewBadRequest(fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("Failed to export report",
			zap.String("format", string(format)),
			zap.String("table", tables[0].Name),
			zap.Error(err))
		return err
	}

	s.metrics.RecordExport(string(format))
	s.logger.Info("Report exported",
		zap.String("format", string(format)),
		zap.Int("tables", len(tables)))
	return nil
}

func (s *Service) exportCSV(w io.Writer, tables []*export.Table) error {
	opts := export.DefaultCSVOptions()
	opts.IncludeSummary = true
	exporter := export.NewCSVExporter(w, opts)
	for i, t := range tables {
		if i > 0 {
			if err := exporter.WriteBlank(); err != nil {
				return err
			}
		}
		if err := exporter.WriteTable(t); err != nil {
			return fmt.Errorf("failed to write %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Service) exportExcel(w io.Writer, tables []*export.Table) error {
	exporter, err := export.NewExcelExporter(export.DefaultExcelOptions())
	if err != nil {
		return err
	}
	defer exporter.Close()

	for _, t := range tables {
		if err := exporter.AddSheet(t); err != nil {
			return fmt.Errorf("failed to write %s: %w", t.Name, err)
		}
	}
	_, err = exporter.WriteTo(w)
	return err
}

func (s *Service) exportPDF(w io.Writer, tables []*export.Table) error {
	generator := export.NewPDFGenerator(export.DefaultPDFOptions())
	for _, t := range tables {
		if err := generator.AddTable(t); err != nil {
			return fmt.Errorf("failed to write %s: %w", t.Name, err)
		}
	}
	return generator.WriteTo(w)
}

// Filename builds an attachment name such as plan-north-field-2025-03-01.pdf
func (s *Service) Filename(subject string, format ExportFormat) string {
	name := slugify(subject)
	if name == "" {
		name = "report"
	}
	return name + "-" + s.now().Format("2006-01-02") + format.Extension()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(v string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(v), "-"), "-")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
