package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adBudgetEngine/app/echo-server/metrics"
	"adBudgetEngine/app/echo-server/router"
	"adBudgetEngine/internal/bootstrap"
	"adBudgetEngine/internal/middleware"
	"adBudgetEngine/internal/rest"
	"adBudgetEngine/pkg/config"
	"adBudgetEngine/pkg/database"
	redisdb "adBudgetEngine/pkg/database/redis"
	"adBudgetEngine/pkg/logger"
	engineMetrics "adBudgetEngine/pkg/metrics"
	"adBudgetEngine/pkg/utils"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting Ad Budget Engine", "version", cfg.App.Version)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	metrics.Init()
	engineMetrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected successfully")

	rdb, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	defer func() {
		if err := redisdb.CloseRedisClient(rdb); err != nil {
			logger.Error("Redis close error", "error", err)
		}
	}()

	engine, err := bootstrap.Build(cfg, db, rdb, clockwork.NewRealClock())
	if err != nil {
		logger.Fatal("Failed to build engine", "error", err)
	}

	// Init handler
	campaignHandler := rest.NewCampaignHandler(engine.Campaigns, engine.Geo, engine.Scheduler)
	ingestHandler := rest.NewIngestHandler(engine.Ledger)
	operatorHandler := rest.NewOperatorHandler(engine.Campaigns, engine.Bandit, engine.Ledger)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	authRequired := middleware.AuthMiddleware()
	adminOnly := middleware.AdminOnly()

	api := e.Group("/api/v1")
	router.SetupCampaignRoutes(api, campaignHandler, authRequired)
	router.SetupIngestRoutes(api, ingestHandler, cfg.Ingest.WebhookToken)
	router.SetupOperatorRoutes(api, operatorHandler, authRequired, adminOnly)

	// Reinvestment loop
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := engine.Loop.Run(loopCtx); err != nil {
			logger.Error("Reinvestment loop exited", "error", err)
		}
	}()

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	stopLoop()
	<-loopDone
	engine.Loop.Stop()

	logger.Info("Server stopped")
}
