package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/middleware"
	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/service"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// dateLayout is the wire format for leave dates.
const dateLayout = "2006-01-02"

// LeaveHandler exposes the leave application endpoints.
type LeaveHandler struct {
	leaves *service.LeaveService
	cache  *service.CacheService
}

// NewLeaveHandler constructs LeaveHandler.
func NewLeaveHandler(leaves *service.LeaveService, cache *service.CacheService) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, cache: cache}
}

type applyLeavePayload struct {
	Category  string   `json:"category"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Reason    string   `json:"reason"`
	Documents []string `json:"documents"`
}

type updateLeavePayload struct {
	Category  string   `json:"category"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Reason    string   `json:"reason"`
	Documents []string `json:"documents"`
}

type decisionPayload struct {
	Remarks string `json:"remarks"`
	Reason  string `json:"reason"`
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// Apply godoc
// @Summary Submit a leave application
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body applyLeavePayload true "Leave payload"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload applyLeavePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	start, err := parseDate(payload.StartDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD"))
		return
	}
	end, err := parseDate(payload.EndDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD"))
		return
	}

	leave, err := h.leaves.Apply(c.Request.Context(), claims, service.ApplyLeaveRequest{
		Category:  models.LeaveCategory(strings.ToLower(payload.Category)),
		StartDate: start,
		EndDate:   end,
		Reason:    payload.Reason,
		Documents: payload.Documents,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if leave.Status == models.LeaveApproved {
		h.invalidateBalance(c, leave.UserID)
	}
	response.Created(c, leave)
}

// ListMine godoc
// @Summary List the caller's leave applications
// @Tags Leaves
// @Produce json
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leaves/my [get]
func (h *LeaveHandler) ListMine(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	leaves, pagination, err := h.leaves.GetMyLeaves(c.Request.Context(), claims, leaveFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

// ListPending godoc
// @Summary List pending leave applications in the caller's review scope
// @Tags Leaves
// @Produce json
// @Param department query string false "Filter by department (superadmin only)"
// @Param category query string false "Filter by category"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leaves/pending [get]
func (h *LeaveHandler) ListPending(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	leaves, pagination, err := h.leaves.GetPendingLeaves(c.Request.Context(), claims, leaveFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

// Get godoc
// @Summary Get one leave application
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	leave, err := h.leaves.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Update godoc
// @Summary Edit a pending leave application
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body updateLeavePayload true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [put]
func (h *LeaveHandler) Update(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload updateLeavePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req := service.UpdateLeaveRequest{
		Category:  models.LeaveCategory(strings.ToLower(payload.Category)),
		Reason:    payload.Reason,
		Documents: payload.Documents,
	}
	if payload.StartDate != "" {
		start, err := parseDate(payload.StartDate)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD"))
			return
		}
		req.StartDate = &start
	}
	if payload.EndDate != "" {
		end, err := parseDate(payload.EndDate)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD"))
			return
		}
		req.EndDate = &end
	}

	leave, err := h.leaves.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Cancel godoc
// @Summary Cancel a pending leave application
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/cancel [put]
func (h *LeaveHandler) Cancel(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	leave, err := h.leaves.Cancel(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Approve godoc
// @Summary Approve a pending leave application
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body decisionPayload false "Approval remarks"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/approve [put]
func (h *LeaveHandler) Approve(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload decisionPayload
	_ = c.ShouldBindJSON(&payload)

	leave, err := h.leaves.Approve(c.Request.Context(), claims, c.Param("id"), payload.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateBalance(c, leave.UserID)
	response.JSON(c, http.StatusOK, leave, nil)
}

// Reject godoc
// @Summary Reject a pending leave application
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body decisionPayload true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/reject [put]
func (h *LeaveHandler) Reject(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload decisionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	leave, err := h.leaves.Reject(c.Request.Context(), claims, c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Statistics godoc
// @Summary Leave statistics grouped by status
// @Tags Leaves
// @Produce json
// @Param department query string false "Filter by department"
// @Param type query string false "Filter by requester type"
// @Param category query string false "Filter by category"
// @Param year query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /leaves/statistics [get]
func (h *LeaveHandler) Statistics(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.LeaveFilter{
		Department:    c.Query("department"),
		RequesterType: models.RequesterType(strings.ToLower(c.Query("type"))),
		Category:      models.LeaveCategory(strings.ToLower(c.Query("category"))),
		AcademicYear:  c.Query("year"),
	}
	stats, err := h.leaves.GetStatistics(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *LeaveHandler) invalidateBalance(c *gin.Context, userID string) {
	if h.cache == nil {
		return
	}
	_ = h.cache.InvalidateUserBalance(c.Request.Context(), userID)
}

func leaveFilterFromQuery(c *gin.Context) models.LeaveFilter {
	var filter models.LeaveFilter
	filter.Status = models.LeaveStatus(strings.ToLower(c.Query("status")))
	filter.Category = models.LeaveCategory(strings.ToLower(c.Query("category")))
	filter.Department = c.Query("department")
	filter.AcademicYear = c.Query("year")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
