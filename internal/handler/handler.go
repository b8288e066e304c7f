package handler

import (
	"errors"
	"net/http"

	"inventory-service/internal/ledger"
	"inventory-service/pkg/catalog"
	"inventory-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler carries the collaborators the endpoints need: the collection
// store behind the ledger and the external catalog client.
type Handler struct {
	store   ledger.Storage
	catalog *catalog.Client
}

// New creates the handler set.
func New(store ledger.Storage, catalogClient *catalog.Client) *Handler {
	return &Handler{store: store, catalog: catalogClient}
}

// session opens a ledger session for this request: one load of the whole
// collection. A corrupt stored payload is downgraded to a warning and an
// empty collection so the app stays usable.
func (h *Handler) session(c echo.Context) (*ledger.Ledger, error) {
	log := logger.FromContext(c)
	l := ledger.New(h.store)
	if err := l.Load(c.Request().Context()); err != nil {
		if ledger.IsCorrupt(err) {
			log.Warn("Stored product collection is corrupt, starting from an empty collection", zap.Error(err))
			return l, nil
		}
		return nil, err
	}
	return l, nil
}

// statusFor maps a ledger error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrDuplicateProduct):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStorageRead), errors.Is(err, ledger.ErrStorageWrite):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
