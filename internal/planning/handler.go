package planning

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/apierror"
)

// Handler handles HTTP requests for liming plans
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new planning handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers plan routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	plans := router.Group("/plans")
	{
		plans.POST("", h.generatePlan)
		plans.GET("", h.listPlans)
		plans.GET("/:id", h.getPlan)
		plans.DELETE("/:id", h.deletePlan)
		plans.POST("/:id/approve", h.approvePlan)
		plans.POST("/:id/recalculate", h.recalculatePlan)

		plans.POST("/:id/applications", h.addApplication)
		plans.PATCH("/:id/applications/:appId", h.patchApplication)
		plans.DELETE("/:id/applications/:appId", h.deleteApplication)
		plans.POST("/:id/applications/:appId/simulate", h.simulateEdit)
	}
}

type versionRequest struct {
	Version int `json:"version" binding:"required"`
}

// generatePlan handles POST /api/v1/plans
func (h *Handler) generatePlan(c *gin.Context) {
	var req GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.service.GeneratePlan(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// listPlans handles GET /api/v1/plans
func (h *Handler) listPlans(c *gin.Context) {
	filter := PlanFilter{Limit: 50}
	if v := c.Query("parcel_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parcel ID"})
			return
		}
		filter.ParcelID = &id
	}
	if v := c.Query("status"); v != "" {
		status := PlanStatus(v)
		if !planStates.Known(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan status"})
			return
		}
		filter.Status = &status
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	plans, err := h.service.ListPlans(c.Request.Context(), filter)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans, "count": len(plans)})
}

// getPlan handles GET /api/v1/plans/:id
func (h *Handler) getPlan(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.service.GetPlan(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// deletePlan handles DELETE /api/v1/plans/:id
func (h *Handler) deletePlan(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePlan(c.Request.Context(), id); err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// approvePlan handles POST /api/v1/plans/:id/approve
func (h *Handler) approvePlan(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.service.ApprovePlan(c.Request.Context(), id, req.Version)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// recalculatePlan handles POST /api/v1/plans/:id/recalculate
func (h *Handler) recalculatePlan(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.service.RecalculatePlan(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// addApplication handles POST /api/v1/plans/:id/applications
func (h *Handler) addApplication(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req AddApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.service.AddApplication(c.Request.Context(), id, req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// patchApplication handles PATCH /api/v1/plans/:id/applications/:appId
func (h *Handler) patchApplication(c *gin.Context) {
	planID, appID, req, ok := h.bindPatch(c)
	if !ok {
		return
	}
	plan, err := h.service.PatchApplication(c.Request.Context(), planID, appID, req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// simulateEdit handles POST /api/v1/plans/:id/applications/:appId/simulate
func (h *Handler) simulateEdit(c *gin.Context) {
	planID, appID, req, ok := h.bindPatch(c)
	if !ok {
		return
	}
	sim, err := h.service.SimulateEdit(c.Request.Context(), planID, appID, req)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}

// deleteApplication handles DELETE /api/v1/plans/:id/applications/:appId?version=N
func (h *Handler) deleteApplication(c *gin.Context) {
	planID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	appID, ok := parseUUID(c, "appId")
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version query parameter is required"})
		return
	}
	plan, err := h.service.DeleteApplication(c.Request.Context(), planID, appID, version)
	if err != nil {
		apierror.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) bindPatch(c *gin.Context) (uuid.UUID, uuid.UUID, PatchRequest, bool) {
	var req PatchRequest
	planID, ok := parseUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, req, false
	}
	appID, ok := parseUUID(c, "appId")
	if !ok {
		return uuid.Nil, uuid.Nil, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, h.logger, apierror.NewBadRequest(err.Error()))
		return uuid.Nil, uuid.Nil, req, false
	}
	return planID, appID, req, true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}
