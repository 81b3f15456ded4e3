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

// BalanceHandler exposes the balance ledger endpoints.
type BalanceHandler struct {
	balances *service.BalanceService
	cache    *service.CacheService
	leaves   config.LeavesConfig
}

// NewBalanceHandler constructs BalanceHandler.
func NewBalanceHandler(balances *service.BalanceService, cache *service.CacheService, leaves config.LeavesConfig) *BalanceHandler {
	return &BalanceHandler{balances: balances, cache: cache, leaves: leaves}
}

type initializeBalancesPayload struct {
	Role       string `json:"role"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

func (h *BalanceHandler) year(c *gin.Context) string {
	if year := c.Query("year"); year != "" {
		return year
	}
	return h.leaves.AcademicYear
}

// MyBalance godoc
// @Summary Get the caller's leave balance
// @Tags Balances
// @Produce json
// @Param year query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /balances/my [get]
func (h *BalanceHandler) MyBalance(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.serveBalance(c, claims.UserID)
}

// UserBalance godoc
// @Summary Get a user's leave balance
// @Tags Balances
// @Produce json
// @Param id path string true "User ID"
// @Param year query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /balances/{id} [get]
func (h *BalanceHandler) UserBalance(c *gin.Context) {
	h.serveBalance(c, c.Param("id"))
}

func (h *BalanceHandler) serveBalance(c *gin.Context, userID string) {
	ctx := c.Request.Context()
	year := h.year(c)

	key := service.BalanceCacheKey(userID, year)
	if h.cache.Enabled() {
		var cached models.LeaveBalance
		if hit, _ := h.cache.Get(ctx, key, &cached); hit {
			response.JSON(c, http.StatusOK, &cached, nil)
			return
		}
	}

	balance, err := h.balances.GetBalance(ctx, userID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.Set(ctx, key, balance, 0)
	response.JSON(c, http.StatusOK, balance, nil)
}

// Initialize godoc
// @Summary Initialize one user's balance from the active policy
// @Tags Balances
// @Produce json
// @Param id path string true "User ID"
// @Param year query string false "Academic year, defaults to the current one"
// @Success 201 {object} response.Envelope
// @Router /balances/{id}/initialize [post]
func (h *BalanceHandler) Initialize(c *gin.Context) {
	userID := c.Param("id")
	year := h.year(c)
	if err := h.balances.InitializeBalance(c.Request.Context(), userID, year); err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidateUserBalance(c.Request.Context(), userID)
	balance, err := h.balances.GetBalance(c.Request.Context(), userID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, balance)
}

// BulkInitialize godoc
// @Summary Initialize balances for every active user with a role in a department
// @Tags Balances
// @Accept json
// @Produce json
// @Param payload body initializeBalancesPayload true "Target role, department and year"
// @Success 200 {object} response.Envelope
// @Router /balances/initialize [post]
func (h *BalanceHandler) BulkInitialize(c *gin.Context) {
	var payload initializeBalancesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	role := models.UserRole(strings.ToUpper(payload.Role))
	if !role.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
		return
	}
	year := payload.Year
	if year == "" {
		year = h.leaves.AcademicYear
	}
	result, err := h.balances.InitializeBalances(c.Request.Context(), role, payload.Department, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Reset one user's balance from the current active policy
// @Tags Balances
// @Produce json
// @Param id path string true "User ID"
// @Param year query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /balances/{id}/reset [post]
func (h *BalanceHandler) Reset(c *gin.Context) {
	userID := c.Param("id")
	year := h.year(c)
	if err := h.balances.ResetBalance(c.Request.Context(), userID, year); err != nil {
		response.Error(c, err)
		return
	}
	_ = h.cache.InvalidateUserBalance(c.Request.Context(), userID)
	balance, err := h.balances.GetBalance(c.Request.Context(), userID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// LowBalance godoc
// @Summary List users whose remaining balance fell under a threshold
// @Tags Balances
// @Produce json
// @Param threshold query int false "Remaining-days threshold"
// @Param year query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /balances/low [get]
func (h *BalanceHandler) LowBalance(c *gin.Context) {
	threshold := h.leaves.LowBalanceThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "threshold must be an integer"))
			return
		}
		threshold = parsed
	}
	alerts, err := h.balances.GetLowBalanceUsers(c.Request.Context(), h.year(c), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}
