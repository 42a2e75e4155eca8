package router

import (
	"adBudgetEngine/internal/middleware"
	"adBudgetEngine/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupCampaignRoutes(api *echo.Group, handler *rest.CampaignHandler, authRequired echo.MiddlewareFunc) {
	campaigns := api.Group("/campaigns", authRequired)

	campaigns.POST("", handler.Create)
	campaigns.GET("", handler.List)
	campaigns.GET("/:id", handler.Get)

	campaigns.POST("/:id/launch", handler.Launch)
	campaigns.POST("/:id/pause", handler.Pause)
	campaigns.POST("/:id/resume", handler.Resume)
	campaigns.POST("/:id/end", handler.End)

	campaigns.PUT("/:id/constraints", handler.SetConstraints)
	campaigns.PUT("/:id/exclusions", handler.ReplaceExclusions)
	campaigns.GET("/:id/allocation", handler.GetAllocation)
	campaigns.GET("/:id/analytics", handler.GetAnalytics)

	campaigns.POST("/:id/optimize", handler.Optimize)
	campaigns.DELETE("/:id/optimize", handler.CancelOptimization)
	campaigns.GET("/:id/cycles", handler.ListCycles)
}

func SetupIngestRoutes(api *echo.Group, handler *rest.IngestHandler, token string) {
	ingest := api.Group("/ingest", middleware.IngestToken(token))

	ingest.POST("/events", handler.RecordEvent)
	ingest.POST("/spend", handler.RecordSpend)
}

func SetupOperatorRoutes(api *echo.Group, handler *rest.OperatorHandler, authRequired echo.MiddlewareFunc, adminOnly echo.MiddlewareFunc) {
	api.GET("/operator/logs", handler.ListLogs, authRequired)

	admin := api.Group("/admin", authRequired, adminOnly)
	admin.GET("/optimizer/config", handler.GetConfig)
	admin.PUT("/optimizer/config", handler.UpsertConfig)
	admin.GET("/campaigns/:id/arms", handler.DebugArms)
	admin.GET("/campaigns/:id/codes", handler.ListCodes)
}
