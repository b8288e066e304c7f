package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/model"
	"inventory-service/pkg/catalog"
	"inventory-service/pkg/config"
	"inventory-service/pkg/storage"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var metricsOnce sync.Once

// newTestHandler builds a handler over a seeded in-memory store.
func newTestHandler(t *testing.T, seed ...model.Product) (*Handler, *storage.MemoryStore, *echo.Echo) {
	t.Helper()
	metricsOnce.Do(func() {
		cfg, err := config.Load()
		require.NoError(t, err)
		prometheus.InitMetrics(cfg)
	})

	store := storage.NewMemoryStore()
	if len(seed) > 0 {
		require.NoError(t, store.Set(context.Background(), seed))
	}
	return New(store, nil), store, echo.New()
}

func seedProduct(id, descricao, codprod string, quantidade int, validade time.Time) model.Product {
	return model.Product{
		ID:          id,
		Descricao:   descricao,
		CodProd:     codprod,
		CodAuxiliar: "789" + codprod,
		Lote:        "L-" + codprod,
		Quantidade:  quantidade,
		Validade:    validade,
		Status:      model.StatusActive,
	}
}

func jsonRequest(method, target, body string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestCreateProduct(t *testing.T) {
	h, store, e := newTestHandler(t)

	body := `{"descricao":"Leite","codprod":"001","codauxiliar":"789001","lote":"L1","quantidade":10,"validade":"2027-12-31T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/products", body), rec)

	require.NoError(t, h.CreateProduct(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Leite", created.Descricao)

	persisted, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestCreateProductDuplicate(t *testing.T) {
	h, store, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))

	body := `{"descricao":"Leite","codprod":"002","codauxiliar":"789002","lote":"L2","quantidade":5,"validade":"2027-06-30T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/products", body), rec)

	require.NoError(t, h.CreateProduct(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	persisted, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 1, "rejected upsert must not write")
}

func TestListProductsFilterAndSort(t *testing.T) {
	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Now().AddDate(0, 0, 40)),
		seedProduct("2", "Leite Desnatado", "002", 5, time.Now().AddDate(0, 0, 10)),
		seedProduct("3", "Queijo", "003", 2, time.Now().AddDate(0, 0, 5)),
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/products?q=leite&field=name", ""), rec)
	require.NoError(t, h.ListProducts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Leite", products[0].Descricao, "exact match sorts first")

	// Sort the whole list by quantidade descending.
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodGet, "/api/products?sort=quantidade&dir=desc", ""), rec)
	require.NoError(t, h.ListProducts(c))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 3)
	assert.Equal(t, 10, products[0].Quantidade)
	assert.Equal(t, 2, products[2].Quantidade)
}

func TestCreateProductRejectsNonPositiveQuantidade(t *testing.T) {
	for _, quantidade := range []int{0, -5} {
		h, store, e := newTestHandler(t)

		body := fmt.Sprintf(`{"descricao":"Leite","codprod":"001","codauxiliar":"789001","lote":"L1","quantidade":%d,"validade":"2027-12-31T00:00:00Z"}`, quantidade)
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPost, "/api/products", body), rec)

		require.NoError(t, h.CreateProduct(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		persisted, err := store.Get(context.Background())
		require.NoError(t, err)
		assert.Empty(t, persisted)
	}
}

func TestUpdateProductRejectsNonPositiveQuantidade(t *testing.T) {
	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))

	body := `{"descricao":"Leite","codprod":"001","codauxiliar":"789001","lote":"L-001","quantidade":0,"validade":"2027-12-31T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/products/1", body), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.UpdateProduct(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsRejectsUnknownParams(t *testing.T) {
	targets := []string{
		"/api/products?field=price",
		"/api/products?sort=price",
		"/api/products?sort=validade&dir=sideways",
	}
	for _, target := range targets {
		h, _, e := newTestHandler(t,
			seedProduct("1", "Leite", "001", 10, time.Now().AddDate(0, 0, 40)))

		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodGet, target, ""), rec)
		require.NoError(t, h.ListProducts(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListProductsExpiringWithin(t *testing.T) {
	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Now().AddDate(0, 0, 40)),
		seedProduct("2", "Queijo", "002", 5, time.Now().AddDate(0, 0, 10)),
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/products?expiring_within=30", ""), rec)
	require.NoError(t, h.ListProducts(c))

	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "2", products[0].ID)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodGet, "/api/products?expiring_within=soon", ""), rec)
	require.NoError(t, h.ListProducts(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsCorruptStorageReturnsEmpty(t *testing.T) {
	h, store, e := newTestHandler(t)
	store.SetRaw([]byte("{corrupt"))

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/products", ""), rec)
	require.NoError(t, h.ListProducts(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTreatProductSplit(t *testing.T) {
	h, store, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/products/1/treatments", `{"type":"sold","quantity":4}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.TreatProduct(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var records []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, 6, records[0].Quantidade)
	assert.Equal(t, 4, records[1].Quantidade)
	assert.Equal(t, model.StatusTreated, records[1].Status)

	persisted, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestTreatProductRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero quantity", `{"type":"sold","quantity":0}`, http.StatusBadRequest},
		{"negative quantity", `{"type":"sold","quantity":-1}`, http.StatusBadRequest},
		{"over stock", `{"type":"sold","quantity":11}`, http.StatusUnprocessableEntity},
		{"unknown type", `{"type":"donated","quantity":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store, e := newTestHandler(t,
				seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))
			before := store.Raw()

			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/api/products/1/treatments", tt.body), rec)
			c.SetParamNames("id")
			c.SetParamValues("1")

			require.NoError(t, h.TreatProduct(c))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, before, store.Raw(), "rejected treatment must not write")
		})
	}
}

func TestTreatProductNotFound(t *testing.T) {
	h, _, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/products/missing/treatments", `{"type":"sold","quantity":1}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, h.TreatProduct(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProduct(t *testing.T) {
	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodDelete, "/api/products/1", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.DeleteProduct(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodDelete, "/api/products/1", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.DeleteProduct(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProductKeepsStatus(t *testing.T) {
	treatedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	treated := seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC))
	treated.Status = model.StatusTreated
	treated.TreatmentType = model.TreatmentSold
	treated.TreatmentDate = &treatedAt

	h, _, e := newTestHandler(t, treated)

	body := `{"descricao":"Leite Integral","codprod":"001","codauxiliar":"789001","lote":"L-001","quantidade":10,"validade":"2027-12-31T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/api/products/1", body), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.UpdateProduct(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Leite Integral", updated.Descricao)
	assert.Equal(t, model.StatusTreated, updated.Status, "editing must not reactivate a treated record")
}

func TestDashboard(t *testing.T) {
	treatedAt := time.Now()
	treated := seedProduct("4", "Iogurte", "004", 3, time.Now().AddDate(0, 0, 3))
	treated.Status = model.StatusTreated
	treated.TreatmentType = model.TreatmentExpired
	treated.TreatmentDate = &treatedAt

	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Now().AddDate(0, 0, -2)),
		seedProduct("2", "Queijo", "002", 5, time.Now().AddDate(0, 0, 5)),
		seedProduct("3", "Manteiga", "003", 2, time.Now().AddDate(0, 0, 60)),
		treated,
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/dashboard", ""), rec)
	require.NoError(t, h.Dashboard(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var summary DashboardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalProducts)
	assert.Equal(t, 17, summary.TotalUnits)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 1, summary.Critical)
	assert.Equal(t, 1, summary.Ok)
	assert.Equal(t, 1, summary.Treated)
	assert.Equal(t, 3, summary.TreatedUnits)
}

func TestExportImportRoundTrip(t *testing.T) {
	h, _, e := newTestHandler(t,
		seedProduct("1", "Leite", "001", 10, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)),
		seedProduct("2", "Queijo", "002", 5, time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)),
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/products/export", ""), rec)
	require.NoError(t, h.ExportProducts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two records")
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "Leite", rows[1][1])
	require.NoError(t, f.Close())

	// Import the exported sheet into a fresh service instance.
	h2, store2, e2 := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(rec.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products/import", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec2 := httptest.NewRecorder()
	c2 := e2.NewContext(req, rec2)

	require.NoError(t, h2.ImportProducts(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)

	persisted, err := store2.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "Leite", persisted[0].Descricao)
	assert.Equal(t, 5, persisted[1].Quantidade)
}

func TestImportRejectsBadRow(t *testing.T) {
	f := excelize.NewFile()
	for col, name := range sheetColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}
	// quantidade is not a number
	f.SetCellValue(sheetName, "A2", "1")
	f.SetCellValue(sheetName, "B2", "Leite")
	f.SetCellValue(sheetName, "C2", "001")
	f.SetCellValue(sheetName, "D2", "789001")
	f.SetCellValue(sheetName, "E2", "L1")
	f.SetCellValue(sheetName, "F2", "many")
	f.SetCellValue(sheetName, "G2", "2027-12-31")

	var sheet bytes.Buffer
	require.NoError(t, f.Write(&sheet))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	h, store, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/products/import", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ImportProducts(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	persisted, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted, "failed import must not overwrite the collection")
}

func TestImportRejectsDuplicateIDs(t *testing.T) {
	f := excelize.NewFile()
	for col, name := range sheetColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}
	rows := [][]interface{}{
		{"1", "Leite", "001", "789001", "L1", 10, "2027-12-31", 0, "active"},
		{"1", "Queijo", "002", "789002", "L2", 5, "2027-06-30", 0, "active"},
	}
	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	var sheet bytes.Buffer
	require.NoError(t, f.Write(&sheet))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	h, store, e := newTestHandler(t,
		seedProduct("9", "Manteiga", "009", 2, time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)))
	before := store.Raw()

	req := httptest.NewRequest(http.MethodPost, "/api/products/import", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ImportProducts(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, before, store.Raw(), "duplicate-id import must not overwrite the collection")
}

func TestLookupBarcode(t *testing.T) {
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/789001") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"descricao":"Leite","codprod":"001","codauxiliar":"789001"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer catalogSrv.Close()

	client := catalog.NewClient(config.CatalogConfig{BaseURL: catalogSrv.URL, Timeout: 2 * time.Second})
	store := storage.NewMemoryStore()
	h := New(store, client)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/api/catalog/789001", ""), rec)
	c.SetParamNames("ean")
	c.SetParamValues("789001")
	require.NoError(t, h.LookupBarcode(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Leite")

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodGet, "/api/catalog/000000", ""), rec)
	c.SetParamNames("ean")
	c.SetParamValues("000000")
	require.NoError(t, h.LookupBarcode(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	h, _, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/health", ""), rec)
	require.NoError(t, h.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
