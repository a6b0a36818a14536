package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(api *handlers.API, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api")
	{
		v1.POST("/runs", api.TriggerRun)

		v1.GET("/risk", api.ListRisk)

		v1.GET("/actions", api.ListActions)
		v1.PATCH("/actions/:id", api.UpdateActionStatus)
		v1.POST("/actions/:id/outcome", api.RecordOutcome)

		v1.GET("/kpis", api.KPIOverview)

		v1.POST("/ingest/sales", api.IngestSales)
		v1.POST("/ingest/inventory", api.IngestInventory)
		v1.POST("/ingest/products", api.IngestProducts)
		v1.POST("/ingest/sheets", api.IngestSheets)

		v1.GET("/reports/risk.xlsx", api.RiskReport)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
