package calculator

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/apierror"
	"agrolime/liming-portal-backend/internal/parcels"
)

// Handler handles guided calculator requests
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new calculator handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers calculator routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	calc := router.Group("/calculator")
	{
		calc.POST("/report", h.report)
		calc.POST("/simulate", h.simulate)
	}
}

// report handles POST /api/v1/calculator/report
func (h *Handler) report(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := h.service.Report(c.Request.Context(), req)
	if err != nil {
		var verr *parcels.ValidationError
		if errors.As(err, &verr) {
			apierror.Validation(c, verr.Results)
			return
		}
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// simulate handles POST /api/v1/calculator/simulate
func (h *Handler) simulate(c *gin.Context) {
	var in agronomy.SimulationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.service.Simulate(in)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
