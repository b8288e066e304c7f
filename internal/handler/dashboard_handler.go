package handler

import (
	"net/http"
	"time"

	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DashboardSummary is the data source of the dashboard screen: active
// stock partitioned into expiration buckets.
type DashboardSummary struct {
	TotalProducts int `json:"total_products"`
	TotalUnits    int `json:"total_units"`
	Expired       int `json:"expired"`       // days remaining < 0
	Critical      int `json:"critical"`      // 0–7 days
	Warning       int `json:"warning"`       // 8–30 days
	Ok            int `json:"ok"`            // more than 30 days
	Treated       int `json:"treated"`       // records with a recorded disposition
	TreatedUnits  int `json:"treated_units"` // units across treated records
}

// Dashboard handles the expiration-bucket summary
func (h *Handler) Dashboard(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Building dashboard summary")

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to build dashboard"})
	}

	now := time.Now()
	var summary DashboardSummary
	for _, p := range l.Products() {
		if !p.IsActive() {
			summary.Treated++
			summary.TreatedUnits += p.Quantidade
			continue
		}
		summary.TotalProducts++
		summary.TotalUnits += p.Quantidade
		switch days := p.DaysRemaining(now); {
		case days < 0:
			summary.Expired++
		case days <= 7:
			summary.Critical++
		case days <= 30:
			summary.Warning++
		default:
			summary.Ok++
		}
	}

	prometheus.UpdateExpiringProducts("expired", float64(summary.Expired))
	prometheus.UpdateExpiringProducts("critical", float64(summary.Critical))
	prometheus.UpdateExpiringProducts("warning", float64(summary.Warning))
	prometheus.UpdateExpiringProducts("ok", float64(summary.Ok))

	log.Info("Dashboard summary built",
		zap.Int("active", summary.TotalProducts),
		zap.Int("expired", summary.Expired),
		zap.Int("critical", summary.Critical))
	return c.JSON(http.StatusOK, summary)
}
