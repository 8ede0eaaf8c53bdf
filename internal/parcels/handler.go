package parcels

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/agronomy"
	"agrolime/liming-portal-backend/internal/apierror"
)

// Handler handles HTTP requests for parcels and readings
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new parcels handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers parcel routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	parcels := router.Group("/parcels")
	{
		parcels.POST("", h.createParcel)
		parcels.GET("", h.listParcels)
		parcels.GET("/:id", h.getParcel)
		parcels.PATCH("/:id", h.updateParcel)

		parcels.POST("/:id/readings", h.recordReading)
		parcels.GET("/:id/readings", h.listReadings)
		parcels.GET("/:id/readings/latest", h.latestReading)
		parcels.GET("/:id/assessment", h.assess)
	}
}

// createParcel handles POST /api/v1/parcels
func (h *Handler) createParcel(c *gin.Context) {
	var req CreateParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	parcel, err := h.service.CreateParcel(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, parcel)
}

// listParcels handles GET /api/v1/parcels
func (h *Handler) listParcels(c *gin.Context) {
	filter := ParcelFilter{
		Limit:  h.getIntParam(c, "limit", 100),
		Offset: h.getIntParam(c, "offset", 0),
	}
	if v := c.Query("soil_texture"); v != "" {
		t, err := agronomy.ParseSoilTexture(v)
		if err != nil {
			apierror.Respond(c, h.logger, err)
			return
		}
		filter.Texture = &t
	}
	if v := c.Query("land_use"); v != "" {
		u, err := agronomy.ParseLandUse(v)
		if err != nil {
			apierror.Respond(c, h.logger, err)
			return
		}
		filter.LandUse = &u
	}

	parcels, err := h.service.ListParcels(c.Request.Context(), filter)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcels": parcels, "count": len(parcels)})
}

// getParcel handles GET /api/v1/parcels/:id
func (h *Handler) getParcel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	parcel, err := h.service.GetParcel(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, parcel)
}

// updateParcel handles PATCH /api/v1/parcels/:id
func (h *Handler) updateParcel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req UpdateParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	parcel, err := h.service.UpdateParcel(c.Request.Context(), id, req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, parcel)
}

// recordReading handles POST /api/v1/parcels/:id/readings
func (h *Handler) recordReading(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req RecordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading, warnings, err := h.service.RecordReading(c.Request.Context(), id, req)
	var verr *ValidationError
	if errors.As(err, &verr) {
		apierror.Validation(c, verr.Results)
		return
	}
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reading": reading, "warnings": warnings})
}

// listReadings handles GET /api/v1/parcels/:id/readings
func (h *Handler) listReadings(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	readings, err := h.service.ListReadings(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings, "count": len(readings)})
}

// latestReading handles GET /api/v1/parcels/:id/readings/latest
func (h *Handler) latestReading(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	reading, err := h.service.LatestReading(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

// assess handles GET /api/v1/parcels/:id/assessment
func (h *Handler) assess(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	assessment, err := h.service.Assess(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parcel ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) getIntParam(c *gin.Context, key string, defaultValue int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}
