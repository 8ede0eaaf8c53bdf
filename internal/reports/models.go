package reports

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agrolime/liming-portal-backend/internal/apierror"
)

// ExportFormat represents the output format for exports
type ExportFormat string

const (
	ExportFormatCSV   ExportFormat = "csv"
	ExportFormatExcel ExportFormat = "xlsx"
	ExportFormatPDF   ExportFormat = "pdf"
)

// ParseExportFormat accepts the format names and the common aliases
func ParseExportFormat(v string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "xlsx", "excel":
		return ExportFormatExcel, nil
	case "pdf":
		return ExportFormatPDF, nil
	}
	return "", apierror.NewBadRequest(fmt.Sprintf("unsupported export format %q", v))
}

// ContentType returns the MIME type of the format
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension including the dot
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// PlanRow is the header of a plan as read for exports
type PlanRow struct {
	ID           uuid.UUID `db:"id"`
	ParcelID     uuid.UUID `db:"parcel_id"`
	ParcelName   string    `db:"parcel_name"`
	AreaHa       float64   `db:"area_ha"`
	SoilTexture  string    `db:"soil_texture"`
	LandUse      string    `db:"land_use"`
	StartPH      float64   `db:"start_ph"`
	TargetPH     float64   `db:"target_ph"`
	TotalCaONeed float64   `db:"total_cao_need"`
	Severity     string    `db:"severity"`
	Methodology  string    `db:"methodology"`
	Status       string    `db:"status"`
	Version      int       `db:"version"`
}

// ApplicationRow is one application line of a plan export
type ApplicationRow struct {
	ID                uuid.UUID `db:"id"`
	Sequence          int       `db:"sequence"`
	Year              int       `db:"year"`
	Season            string    `db:"season"`
	ProductName       string    `db:"product_name"`
	CaOContent        float64   `db:"cao_content"`
	MgOContent        float64   `db:"mgo_content"`
	PricePerTon       float64   `db:"price_per_ton"`
	DosePerHa         float64   `db:"dose_per_ha"`
	TotalDose         float64   `db:"total_dose"`
	CaOPerHa          float64   `db:"cao_per_ha"`
	MgOPerHa          float64   `db:"mgo_per_ha"`
	EffectiveCaOPerHa float64   `db:"effective_cao_per_ha"`
	PHBefore          float64   `db:"ph_before"`
	PHAfter           float64   `db:"ph_after"`
	Note              string    `db:"note"`
	Status            string    `db:"status"`
}

// Cancelled reports whether the application no longer counts
func (a ApplicationRow) Cancelled() bool {
	return a.Status == "cancelled"
}

// PlanSummaryRow is one plan of the portfolio overview
type PlanSummaryRow struct {
	ID           uuid.UUID `db:"id"`
	ParcelName   string    `db:"parcel_name"`
	AreaHa       float64   `db:"area_ha"`
	SoilTexture  string    `db:"soil_texture"`
	StartPH      float64   `db:"start_ph"`
	TargetPH     float64   `db:"target_ph"`
	Severity     string    `db:"severity"`
	Status       string    `db:"status"`
	Version      int       `db:"version"`
	Applications int       `db:"applications"`
	TotalDose    float64   `db:"total_dose"`
	TotalProduct float64   `db:"total_product"`
	TotalCost    float64   `db:"total_cost"`
	FinalPH      float64   `db:"final_ph"`
}

// SummaryFilter narrows the portfolio overview
type SummaryFilter struct {
	ParcelID *uuid.UUID
	Status   string
	Limit    int
	Offset   int
}
