package economics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/apierror"
)

// Handler handles HTTP requests for loss estimates
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new economics handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers economics routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	economics := router.Group("/economics")
	{
		economics.GET("/defaults", h.getDefaults)
		economics.POST("/estimate", h.estimate)
		economics.POST("/price", h.recommendedPrice)
	}
}

// getDefaults handles GET /api/v1/economics/defaults
func (h *Handler) getDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Defaults())
}

// estimate handles POST /api/v1/economics/estimate
func (h *Handler) estimate(c *gin.Context) {
	var req EstimateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	est, err := h.service.Estimate(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// recommendedPrice handles POST /api/v1/economics/price
func (h *Handler) recommendedPrice(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.service.RecommendedPrice(req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
