package handler

import (
	"errors"
	"net/http"

	"inventory-service/pkg/catalog"
	"inventory-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LookupBarcode resolves a scanned EAN against the external product
// master so the add form can pre-fill descricao and codprod.
func (h *Handler) LookupBarcode(c echo.Context) error {
	log := logger.FromContext(c)
	ean := c.Param("ean")
	log.Info("Looking up barcode", zap.String("ean", ean))

	entry, err := h.catalog.Lookup(c.Request().Context(), ean)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			log.Warn("Barcode not found in catalog", zap.String("ean", ean))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No catalog entry for this barcode"})
		}
		log.Error("Catalog lookup failed", zap.String("ean", ean), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "Catalog lookup failed"})
	}

	log.Info("Barcode resolved",
		zap.String("ean", ean),
		zap.String("descricao", entry.Descricao),
		zap.String("codprod", entry.CodProd))
	return c.JSON(http.StatusOK, entry)
}
