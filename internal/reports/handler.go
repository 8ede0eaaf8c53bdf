package reports

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/apierror"
	"agrolime/liming-portal-backend/internal/economics"
	"agrolime/liming-portal-backend/internal/reports/export"
)

// Handler handles HTTP requests for report exports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reporting routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/plans/export", h.exportPortfolio)
		reports.GET("/plans/:id/export", h.exportPlan)
		reports.GET("/economics/export", h.exportLosses)
		reports.POST("/economics/export", h.exportLosses)
	}
}

// exportPlan handles GET /api/v1/reports/plans/:id/export
func (h *Handler) exportPlan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan ID"})
		return
	}
	format, ok := h.format(c)
	if !ok {
		return
	}

	table, err := h.service.PlanTable(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	h.send(c, format, h.service.Filename(table.Name, format), table)
}

// exportPortfolio handles GET /api/v1/reports/plans/export
func (h *Handler) exportPortfolio(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	filter := SummaryFilter{Status: c.Query("status")}
	if v := c.Query("parcel_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parcel ID"})
			return
		}
		filter.ParcelID = &id
	}

	table, err := h.service.PortfolioTable(c.Request.Context(), filter)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	h.send(c, format, h.service.Filename(table.Name, format), table)
}

// exportLosses handles GET and POST /api/v1/reports/economics/export.
// GET estimates every stored parcel with the configured prices.
func (h *Handler) exportLosses(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	var req economics.EstimateRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if v := c.Query("sort_by"); v != "" {
		req.SortBy = economics.SortColumn(v)
		req.Descending = c.Query("order") == "desc"
	}

	table, err := h.service.LossTable(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	h.send(c, format, h.service.Filename(table.Name, format), table)
}

func (h *Handler) format(c *gin.Context) (ExportFormat, bool) {
	format, err := ParseExportFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return format, true
}

// send renders into a buffer first so a failed export still gets a JSON error
func (h *Handler) send(c *gin.Context, format ExportFormat, filename string, tables ...*export.Table) {
	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), format, &buf, tables...); err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
