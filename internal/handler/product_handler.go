package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/ledger"
	"inventory-service/internal/model"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProductRequest defines the structure for product creation/update requests
type ProductRequest struct {
	Descricao   string    `json:"descricao"`
	CodProd     string    `json:"codprod"`
	CodAuxiliar string    `json:"codauxiliar"`
	Lote        string    `json:"lote"`
	Quantidade  int       `json:"quantidade"`
	Validade    time.Time `json:"validade"`
}

func (r ProductRequest) toProduct() model.Product {
	return model.Product{
		Descricao:   r.Descricao,
		CodProd:     r.CodProd,
		CodAuxiliar: r.CodAuxiliar,
		Lote:        r.Lote,
		Quantidade:  r.Quantidade,
		Validade:    r.Validade,
		Status:      model.StatusActive,
	}
}

// ListProducts handles retrieving the product list with filtering and sorting
func (h *Handler) ListProducts(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Listing products with filters")

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to retrieve products"})
	}

	query := c.QueryParam("q")
	field := ledger.SearchField(c.QueryParam("field"))
	switch field {
	case "":
		field = ledger.FieldName
	case ledger.FieldName, ledger.FieldCodProd, ledger.FieldEAN:
	default:
		log.Warn("Invalid field parameter", zap.String("value", string(field)))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "field must be one of name, codprod, ean"})
	}

	products := l.Filter(query, field)
	if query != "" {
		log.Info("Filtering products",
			zap.String("query", query),
			zap.String("field", string(field)))
	}

	// "Near expiration" toggle: keep only products inside the horizon
	if horizon := c.QueryParam("expiring_within"); horizon != "" {
		days, err := strconv.Atoi(horizon)
		if err != nil {
			log.Warn("Invalid expiring_within parameter", zap.String("value", horizon), zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "expiring_within must be an integer number of days"})
		}
		products = ledger.ExpiringWithin(products, days, time.Now())
		log.Info("Filtering products by expiration horizon", zap.Int("days", days))
	}

	if sortField := ledger.SortField(c.QueryParam("sort")); sortField != "" {
		switch sortField {
		case ledger.SortByValidade, ledger.SortByQuantidade, ledger.SortByDescricao:
		default:
			log.Warn("Invalid sort parameter", zap.String("value", string(sortField)))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "sort must be one of validade, quantidade, descricao"})
		}
		dir := ledger.Direction(c.QueryParam("dir"))
		switch dir {
		case "":
			dir = ledger.Ascending
		case ledger.Ascending, ledger.Descending:
		default:
			log.Warn("Invalid dir parameter", zap.String("value", string(dir)))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "dir must be asc or desc"})
		}
		l.Sort(products, sortField, dir)
		log.Info("Sorting products", zap.String("sort", string(sortField)), zap.String("dir", string(dir)))
	}

	if products == nil {
		products = []model.Product{}
	}

	log.Info("Products retrieved successfully", zap.Int("count", len(products)))
	return c.JSON(http.StatusOK, products)
}

// GetProduct handles retrieving a single product by ID
func (h *Handler) GetProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Getting product by ID", zap.String("product_id", id))

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to retrieve product"})
	}

	product, err := l.Get(id)
	if err != nil {
		log.Warn("Product not found", zap.String("product_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	log.Info("Product retrieved successfully",
		zap.String("product_id", id),
		zap.String("descricao", product.Descricao))
	return c.JSON(http.StatusOK, product)
}

// CreateProduct handles registering a new product batch
func (h *Handler) CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Creating new product")

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Quantidade <= 0 {
		log.Warn("Rejecting product with non-positive quantidade", zap.Int("quantidade", req.Quantidade))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantidade must be a positive integer"})
	}

	log.Info("Product creation request",
		zap.String("descricao", req.Descricao),
		zap.String("codprod", req.CodProd),
		zap.String("lote", req.Lote),
		zap.Int("quantidade", req.Quantidade))

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to create product"})
	}

	product, err := l.Upsert(c.Request().Context(), req.toProduct())
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateProduct) {
			log.Warn("Product with this descricao or codprod already exists",
				zap.String("descricao", req.Descricao),
				zap.String("codprod", req.CodProd))
			return c.JSON(http.StatusConflict, echo.Map{"error": "Product with this descricao or codprod already exists"})
		}
		if errors.Is(err, ledger.ErrStorageWrite) {
			log.Error("Failed to persist product collection", zap.Error(err))
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "Failed to save product"})
		}
		log.Error("Invalid product", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordProductOperation("create")
	log.Info("Product created successfully",
		zap.String("product_id", product.ID),
		zap.String("descricao", product.Descricao),
		zap.String("lote", product.Lote))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles editing an existing product batch
func (h *Handler) UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Updating product", zap.String("product_id", id))

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.String("product_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Quantidade <= 0 {
		log.Warn("Rejecting product with non-positive quantidade", zap.Int("quantidade", req.Quantidade))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantidade must be a positive integer"})
	}

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to update product"})
	}

	// Keep the status of the existing record: editing the form fields of
	// a treated record must not reactivate it.
	existing, err := l.Get(id)
	if err != nil {
		log.Warn("Product not found for update", zap.String("product_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	product := req.toProduct()
	product.ID = id
	product.Status = existing.Status
	product.TreatmentType = existing.TreatmentType
	product.TreatmentDate = existing.TreatmentDate

	updated, err := l.Upsert(c.Request().Context(), product)
	if err != nil {
		log.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to update product"})
	}

	prometheus.RecordProductOperation("update")
	log.Info("Product updated successfully",
		zap.String("product_id", id),
		zap.String("descricao", updated.Descricao))
	return c.JSON(http.StatusOK, updated)
}

// DeleteProduct handles removing a product batch
func (h *Handler) DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Deleting product", zap.String("product_id", id))

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to delete product"})
	}

	if err := l.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warn("Product not found for deletion", zap.String("product_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
		}
		log.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to delete product"})
	}

	prometheus.RecordProductOperation("delete")
	log.Info("Product deleted successfully", zap.String("product_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

// TreatProduct handles recording a disposition for some or all of a
// product's quantity
func (h *Handler) TreatProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")
	log.Info("Treating product", zap.String("product_id", id))

	var req ledger.TreatmentRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.String("product_id", id), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if !model.ValidTreatmentType(req.Type) {
		log.Warn("Unknown treatment type", zap.String("type", string(req.Type)))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be one of sold, exchanged, returned, expired"})
	}

	log.Info("Treatment request",
		zap.String("product_id", id),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity))

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to treat product"})
	}

	records, err := l.Treat(c.Request().Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			log.Warn("Product not found for treatment", zap.String("product_id", id))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
		case errors.Is(err, ledger.ErrInvalidQuantity):
			log.Warn("Invalid treatment quantity", zap.Int("quantity", req.Quantity))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be a positive integer"})
		case errors.Is(err, ledger.ErrInsufficientStock):
			log.Warn("Treatment quantity exceeds available stock",
				zap.String("product_id", id),
				zap.Int("quantity", req.Quantity))
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "quantity exceeds the available stock"})
		}
		log.Error("Failed to treat product", zap.String("product_id", id), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to treat product"})
	}

	prometheus.RecordTreatment(string(req.Type))
	log.Info("Product treated successfully",
		zap.String("product_id", id),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity),
		zap.Int("resulting_records", len(records)))
	return c.JSON(http.StatusOK, records)
}
