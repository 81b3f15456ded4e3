package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/service"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// SystemHandler serves the admin runtime snapshot.
type SystemHandler struct {
	metrics *service.MetricsService
}

// NewSystemHandler constructs SystemHandler.
func NewSystemHandler(metrics *service.MetricsService) *SystemHandler {
	return &SystemHandler{metrics: metrics}
}

// Metrics godoc
// @Summary Runtime metrics snapshot
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *SystemHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
