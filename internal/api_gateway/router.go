package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/api_gateway/handler"
	"github.com/provenance-ledger/internal/api_gateway/middleware"
)

const readinessTimeout = 2 * time.Second

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	stores Pinger,
	productHandler *handler.ProductHandler,
	recordHandler *handler.RecordHandler,
	traceHandler *handler.TraceHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Identity())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Registry, lifecycle and ledger operations
		products := v1.Group("/products")
		{
			products.POST("", productHandler.Create)
			products.GET("/:id", productHandler.GetByID)
			products.POST("/:id/rfid", productHandler.BindRFID)
			products.POST("/:id/transitions", productHandler.Transition)
			products.GET("/:id/verify", productHandler.Verify)

			products.POST("/:id/checkpoints", recordHandler.Checkpoint)
			products.POST("/:id/telemetry", recordHandler.Telemetry)
			products.POST("/:id/records/:recordId/corrections", recordHandler.Correct)

			products.GET("/:id/timeline", traceHandler.Timeline)
			products.GET("/:id/trace", traceHandler.Trace)
		}

		v1.GET("/rfid/:tag", productHandler.GetByRFID)

		// Device views
		devices := v1.Group("/devices")
		{
			devices.GET("/:id/latest", traceHandler.LatestReading)
			devices.GET("/:id/records", traceHandler.DeviceHistory)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Readiness reports whether the stores answer
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := stores.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "timestamp": time.Now().UTC()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now().UTC()})
	})
}
