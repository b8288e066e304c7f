package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/model"
	"inventory-service/pkg/logger"
	"inventory-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Column order of the spreadsheet, matching the stored collection format.
var sheetColumns = []string{
	"id", "descricao", "codprod", "codauxiliar", "lote",
	"quantidade", "validade", "diasrestantes", "status",
	"treatmentType", "treatmentDate",
}

const sheetName = "Sheet1"

// ExportProducts dumps the whole collection as a spreadsheet
func (h *Handler) ExportProducts(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Exporting product collection")

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to export products"})
	}

	f := excelize.NewFile()
	defer f.Close()

	for col, name := range sheetColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	products := l.Products()
	for row, p := range products {
		values := []interface{}{
			p.ID, p.Descricao, p.CodProd, p.CodAuxiliar, p.Lote,
			p.Quantidade, p.Validade.Format(time.RFC3339), p.DiasRestantes,
			string(p.Status), string(p.TreatmentType), formatTreatmentDate(p.TreatmentDate),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)

	if err := f.Write(c.Response().Writer); err != nil {
		log.Error("Failed to write spreadsheet", zap.Error(err))
		return err
	}

	prometheus.RecordProductOperation("export")
	log.Info("Product collection exported", zap.Int("count", len(products)))
	return nil
}

// ImportProducts bulk-replaces the collection from an uploaded
// spreadsheet. No merge: the previous collection is overwritten
// wholesale.
func (h *Handler) ImportProducts(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Importing product collection")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Error("Missing spreadsheet upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "upload the spreadsheet as multipart field 'file'"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Failed to read uploaded file"})
	}
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		log.Error("Uploaded file is not a valid spreadsheet", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Uploaded file is not a valid spreadsheet"})
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		log.Error("Failed to read spreadsheet rows", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Failed to read spreadsheet rows"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Spreadsheet is empty"})
	}

	products := make([]model.Product, 0, len(rows)-1)
	for i, row := range rows[1:] {
		p, err := rowToProduct(row)
		if err != nil {
			log.Warn("Rejecting spreadsheet row", zap.Int("row", i+2), zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": fmt.Sprintf("row %d: %v", i+2, err),
			})
		}
		products = append(products, p)
	}

	l, err := h.session(c)
	if err != nil {
		log.Error("Failed to load product collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to import products"})
	}

	if err := l.ReplaceAll(c.Request().Context(), products); err != nil {
		log.Error("Failed to persist imported collection", zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": "Failed to save imported products"})
	}

	prometheus.RecordProductOperation("import")
	log.Info("Product collection imported", zap.Int("count", len(products)))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Products imported successfully",
		"count":   len(products),
	})
}

func rowToProduct(row []string) (model.Product, error) {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	quantidade, err := strconv.Atoi(cell(5))
	if err != nil {
		return model.Product{}, fmt.Errorf("quantidade is not an integer: %q", cell(5))
	}

	validade, err := parseDate(cell(6))
	if err != nil {
		return model.Product{}, fmt.Errorf("validade is not a valid date: %q", cell(6))
	}

	p := model.Product{
		ID:          cell(0),
		Descricao:   cell(1),
		CodProd:     cell(2),
		CodAuxiliar: cell(3),
		Lote:        cell(4),
		Quantidade:  quantidade,
		Validade:    validade,
		Status:      model.Status(cell(8)),
	}
	if t := cell(9); t != "" {
		p.TreatmentType = model.TreatmentType(t)
	}
	if d := cell(10); d != "" {
		treated, err := parseDate(d)
		if err != nil {
			return model.Product{}, fmt.Errorf("treatmentDate is not a valid date: %q", d)
		}
		p.TreatmentDate = &treated
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// parseDate accepts RFC 3339 date-times and plain dates, which is what
// spreadsheets usually carry.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func formatTreatmentDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
