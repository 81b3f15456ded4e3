package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/uniport/uap-leave-api/internal/middleware"
	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/service"
	"github.com/uniport/uap-leave-api/pkg/config"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// Dependencies bundles everything route registration needs.
type Dependencies struct {
	Config  *config.Config
	DB      *sqlx.DB
	Auth    *service.AuthService
	Metrics *service.MetricsService

	Leaves   *LeaveHandler
	Balances *BalanceHandler
	Policies *PolicyHandler
}

// RegisterRoutes wires every endpoint onto the router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
	})
	router.GET("/ready", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				response.Error(c, appErrors.Wrap(err, "NOT_READY", http.StatusServiceUnavailable, "database unavailable"))
				return
			}
		}
		response.JSON(c, http.StatusOK, gin.H{"status": "ready"}, nil)
	})
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group(deps.Config.APIPrefix)
	api.Use(middleware.JWT(deps.Auth))

	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin)
	reviewers := middleware.RequireRoles(models.RoleHOD, models.RoleSuperAdmin)

	leaves := api.Group("/leaves")
	{
		leaves.POST("", deps.Leaves.Apply)
		leaves.GET("/my", deps.Leaves.ListMine)
		leaves.GET("/pending", reviewers, deps.Leaves.ListPending)
		leaves.GET("/statistics", reviewers, deps.Leaves.Statistics)
		leaves.GET("/:id", deps.Leaves.Get)
		leaves.PUT("/:id", deps.Leaves.Update)
		leaves.PUT("/:id/cancel", deps.Leaves.Cancel)
		leaves.PUT("/:id/approve", reviewers, deps.Leaves.Approve)
		leaves.PUT("/:id/reject", reviewers, deps.Leaves.Reject)
	}

	balances := api.Group("/balances")
	{
		balances.GET("/my", deps.Balances.MyBalance)
		balances.GET("/low", reviewers, deps.Balances.LowBalance)
		balances.POST("/initialize", adminOnly, deps.Balances.BulkInitialize)
		balances.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleHOD), middleware.SelfRole), deps.Balances.UserBalance)
		balances.POST("/:id/initialize", adminOnly, deps.Balances.Initialize)
		balances.POST("/:id/reset", adminOnly, deps.Balances.Reset)
	}

	policies := api.Group("/policies")
	{
		policies.GET("/active", deps.Policies.GetActive)
		policies.GET("", adminOnly, deps.Policies.List)
		policies.POST("", adminOnly, deps.Policies.Create)
		policies.POST("/default", adminOnly, deps.Policies.CreateDefault)
		policies.GET("/:id", adminOnly, deps.Policies.Get)
		policies.PUT("/:id", adminOnly, deps.Policies.Update)
		policies.PUT("/:id/activate", adminOnly, deps.Policies.Activate)
		policies.PUT("/:id/deactivate", adminOnly, deps.Policies.Deactivate)
	}

	system := api.Group("/system")
	{
		system.GET("/metrics", adminOnly, NewSystemHandler(deps.Metrics).Metrics)
	}
}
