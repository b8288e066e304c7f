package handler

import (
	"context"
	"net/http"
	"time"

	"inventory-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Health check requested")

	// Basic response
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	// Check the collection store if requested
	if c.QueryParam("check") == "storage" {
		pinger, ok := h.store.(interface{ Ping(ctx context.Context) error })
		if !ok {
			response["storage_status"] = "ok"
			return c.JSON(http.StatusOK, response)
		}
		if err := pinger.Ping(c.Request().Context()); err != nil {
			log.Error("Collection store ping error", zap.Error(err))
			response["status"] = "error"
			response["storage_status"] = "error"
			response["storage_error"] = "Failed to ping collection store"
			return c.JSON(http.StatusInternalServerError, response)
		}
		response["storage_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
