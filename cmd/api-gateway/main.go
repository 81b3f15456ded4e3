package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/uniport/uap-leave-api/api/swagger"
	"github.com/uniport/uap-leave-api/internal/handler"
	"github.com/uniport/uap-leave-api/internal/middleware"
	"github.com/uniport/uap-leave-api/internal/repository"
	"github.com/uniport/uap-leave-api/internal/service"
	"github.com/uniport/uap-leave-api/pkg/cache"
	"github.com/uniport/uap-leave-api/pkg/config"
	"github.com/uniport/uap-leave-api/pkg/database"
	"github.com/uniport/uap-leave-api/pkg/logger"
	corsmiddleware "github.com/uniport/uap-leave-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uniport/uap-leave-api/pkg/middleware/requestid"
)

// @title UAP Leave API
// @version 1.0.0
// @description University administration portal, leave management service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cache and notifier disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	leaveRepo := repository.NewLeaveRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	notifierSvc := service.NewNotifierService(redisClient, cfg.Notifier, metricsSvc, logr)

	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	policySvc := service.NewPolicyService(policyRepo, validate, logr)
	balanceSvc := service.NewBalanceService(balanceRepo, userRepo, policySvc, logr)
	leaveSvc := service.NewLeaveService(leaveRepo, policySvc, balanceSvc, notifierSvc, validate, logr, cfg.Leaves.AcademicYear)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifierSvc.Start(rootCtx)
	defer notifierSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, handler.Dependencies{
		Config:   cfg,
		DB:       db,
		Auth:     authSvc,
		Metrics:  metricsSvc,
		Leaves:   handler.NewLeaveHandler(leaveSvc, cacheSvc),
		Balances: handler.NewBalanceHandler(balanceSvc, cacheSvc, cfg.Leaves),
		Policies: handler.NewPolicyHandler(policySvc, cacheSvc, cfg.Leaves),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
