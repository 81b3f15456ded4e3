package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/middleware"
	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/service"
	"github.com/uniport/uap-leave-api/pkg/config"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// PolicyHandler exposes the policy store endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
	cache    *service.CacheService
	leaves   config.LeavesConfig
}

// NewPolicyHandler constructs PolicyHandler.
func NewPolicyHandler(policies *service.PolicyService, cache *service.CacheService, leaves config.LeavesConfig) *PolicyHandler {
	return &PolicyHandler{policies: policies, cache: cache, leaves: leaves}
}

type createDefaultPolicyPayload struct {
	RequesterType string `json:"requester_type"`
	Department    string `json:"department"`
	Year          string `json:"year"`
}

// GetActive godoc
// @Summary Resolve the active policy applying to the caller
// @Tags Policies
// @Produce json
// @Param type query string false "Requester type (admin lookups)"
// @Param department query string false "Department (admin lookups)"
// @Param year query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /policies/active [get]
func (h *PolicyHandler) GetActive(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requesterType := models.RequesterType(strings.ToLower(c.Query("type")))
	department := c.Query("department")
	if claims.Role != models.RoleSuperAdmin || requesterType == "" {
		resolved, ok := models.RequesterTypeForRole(claims.Role)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role has no leave entitlement"))
			return
		}
		requesterType = resolved
		department = claims.Department
	}
	year := c.Query("year")
	if year == "" {
		year = h.leaves.AcademicYear
	}

	ctx := c.Request.Context()
	key := service.PolicyCacheKey(requesterType, department, year)
	if h.cache.Enabled() {
		var cached models.LeavePolicy
		if hit, _ := h.cache.Get(ctx, key, &cached); hit {
			response.JSON(c, http.StatusOK, &cached, nil)
			return
		}
	}

	policy, err := h.policies.GetActivePolicy(ctx, requesterType, department, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Set(ctx, key, policy, 0)
	response.JSON(c, http.StatusOK, policy, nil)
}

// List godoc
// @Summary List leave policies
// @Tags Policies
// @Produce json
// @Param type query string false "Filter by requester type"
// @Param department query string false "Filter by department"
// @Param year query string false "Filter by academic year"
// @Param active query bool false "Only active policies"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /policies [get]
func (h *PolicyHandler) List(c *gin.Context) {
	var filter models.PolicyFilter
	filter.RequesterType = models.RequesterType(strings.ToLower(c.Query("type")))
	filter.Department = c.Query("department")
	filter.AcademicYear = c.Query("year")
	filter.ActiveOnly = c.Query("active") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	policies, pagination, err := h.policies.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policies, pagination)
}

// Get godoc
// @Summary Get one policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id} [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	policy, err := h.policies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Create godoc
// @Summary Create a leave policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param payload body service.CreatePolicyRequest true "Policy payload"
// @Success 201 {object} response.Envelope
// @Router /policies [post]
func (h *PolicyHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidatePolicies(c.Request.Context())
	response.Created(c, policy)
}

// CreateDefault godoc
// @Summary Create and activate a policy from built-in defaults
// @Tags Policies
// @Accept json
// @Produce json
// @Param payload body createDefaultPolicyPayload true "Target triple"
// @Success 201 {object} response.Envelope
// @Router /policies/default [post]
func (h *PolicyHandler) CreateDefault(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload createDefaultPolicyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	year := payload.Year
	if year == "" {
		year = h.leaves.AcademicYear
	}
	policy, err := h.policies.CreateDefault(c.Request.Context(),
		models.RequesterType(strings.ToLower(payload.RequesterType)), payload.Department, year, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidatePolicies(c.Request.Context())
	response.Created(c, policy)
}

// Update godoc
// @Summary Patch a policy's rules and constraints
// @Tags Policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param payload body service.UpdatePolicyRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /policies/{id} [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	var req service.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidatePolicies(c.Request.Context())
	response.JSON(c, http.StatusOK, policy, nil)
}

// Activate godoc
// @Summary Activate a policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id}/activate [put]
func (h *PolicyHandler) Activate(c *gin.Context) {
	policy, err := h.policies.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidatePolicies(c.Request.Context())
	response.JSON(c, http.StatusOK, policy, nil)
}

// Deactivate godoc
// @Summary Deactivate a policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id}/deactivate [put]
func (h *PolicyHandler) Deactivate(c *gin.Context) {
	policy, err := h.policies.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidatePolicies(c.Request.Context())
	response.JSON(c, http.StatusOK, policy, nil)
}
