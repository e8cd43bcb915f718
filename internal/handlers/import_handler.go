package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// DefaultMaxUploadBytes caps an import upload at 20 MiB
const DefaultMaxUploadBytes int64 = 20 << 20

// multipartOverhead leaves room for boundaries and form fields
const multipartOverhead int64 = 1 << 20

var allowedImportContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

var allowedImportExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// ProductExporter lists stored products for export
type ProductExporter interface {
	ListAllProducts(ctx context.Context) ([]models.Product, error)
}

// ImportHandlerConfig configures upload handling
type ImportHandlerConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

type ImportHandler struct {
	service  *services.ImportService
	jobs     *services.ImportJobStore
	exporter ProductExporter
	cfg      ImportHandlerConfig
	logger   *logrus.Entry
}

// NewImportHandler creates the import handler. jobs may be nil, in which case
// async requests run synchronously.
func NewImportHandler(service *services.ImportService, jobs *services.ImportJobStore, exporter ProductExporter, cfg ImportHandlerConfig, logger *logrus.Entry) *ImportHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(os.TempDir(), "catalog-imports")
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImportHandler{
		service:  service,
		jobs:     jobs,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger.WithField("component", "import-handler"),
	}
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/products/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate(h.service.RequiredFields())

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate writes the header row and one example row
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	examples := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
		examples[i] = col.Example
	}
	writer.Write(headers)
	writer.Write(examples)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Required columns stand out
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		exampleCell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, exampleCell, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Only the first sheet is imported. Delete the example row before uploading.")
	f.SetCellValue("Instructions", "A4", "Columns marked * are required. Any invalid row rejects the whole file.")
	f.SetCellValue("Instructions", "A5", "Slugs that already exist get a numeric suffix. Subcategory names are not matched; use subcategory_id.")
	f.SetCellValue("Instructions", "A6", "Image and PDF values must be URLs or server paths, not paths on your computer (C:\\...).")

	f.SetCellValue("Instructions", "A8", "Column")
	f.SetCellValue("Instructions", "B8", "Description")
	f.SetCellValue("Instructions", "C8", "Required")
	f.SetCellValue("Instructions", "D8", "Type")
	f.SetCellValue("Instructions", "E8", "Example")

	for i, col := range template.Columns {
		row := i + 9
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}

// ImportProducts imports products from a CSV or Excel upload
// POST /api/v1/products/import[?async=true]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.rejectTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, models.ImportErrorResponse{Error: "No file uploaded"})
		return
	}
	file.Close()

	if header.Size > h.cfg.MaxUploadBytes {
		h.rejectTooLarge(c)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImportExtensions[ext] {
		c.JSON(http.StatusBadRequest, models.ImportErrorResponse{
			Error: (&services.UnsupportedFormatError{Extension: ext}).Error(),
		})
		return
	}

	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || !allowedImportContentTypes[strings.ToLower(mediaType)] {
		c.JSON(http.StatusBadRequest, models.ImportErrorResponse{
			Error: "Invalid file type. Only CSV and Excel files are allowed",
		})
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.logger.WithError(err).Error("Failed to create upload directory")
		c.JSON(http.StatusInternalServerError, models.ImportErrorResponse{
			Error:   "Failed to process file",
			Details: err.Error(),
		})
		return
	}

	jobID := uuid.New().String()
	path := filepath.Join(h.cfg.UploadDir, jobID+ext)
	if err := c.SaveUploadedFile(header, path); err != nil {
		h.logger.WithError(err).Error("Failed to store uploaded file")
		c.JSON(http.StatusInternalServerError, models.ImportErrorResponse{
			Error:   "Failed to process file",
			Details: err.Error(),
		})
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"fileName": header.Filename,
		"size":     header.Size,
	})

	if c.Query("async") == "true" && h.jobs != nil {
		job, err := h.jobs.Enqueue(c.Request.Context(), header.Filename, path, ext)
		if err == nil {
			log.WithField("jobId", job.ID).Info("Import job queued")
			c.JSON(http.StatusAccepted, gin.H{
				"jobId":  job.ID,
				"status": job.Status,
			})
			return
		}
		log.WithError(err).Warn("Failed to queue import job, processing synchronously")
	}

	defer services.RemoveUpload(log, path)

	report, err := h.service.Run(c.Request.Context(), jobID, path, ext)
	if err != nil {
		h.respondImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewImportResponse(report))
}

func (h *ImportHandler) rejectTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, models.ImportErrorResponse{
		Error: fmt.Sprintf("File too large. Maximum size is %d MB", h.cfg.MaxUploadBytes>>20),
	})
}

// respondImportError maps a job-fatal error onto its response
func (h *ImportHandler) respondImportError(c *gin.Context, err error) {
	var validationErr *services.ValidationFailedError
	var formatErr *services.UnsupportedFormatError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.ImportErrorResponse{
			Error:  "Validation failed",
			Errors: validationErr.Errors,
		})
	case errors.As(err, &formatErr):
		c.JSON(http.StatusBadRequest, models.ImportErrorResponse{Error: formatErr.Error()})
	case errors.Is(err, services.ErrImportInProgress):
		c.JSON(http.StatusConflict, models.ImportErrorResponse{Error: "Another import is already in progress"})
	default:
		h.logger.WithError(err).Error("Import failed")
		c.JSON(http.StatusInternalServerError, models.ImportErrorResponse{
			Error:   "Failed to process file",
			Details: err.Error(),
		})
	}
}

// GetImportJob returns the state of an async import
// GET /api/v1/products/import/jobs/:id
func (h *ImportHandler) GetImportJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "ASYNC_IMPORT_DISABLED",
				Message: "Async import is not available",
			},
		})
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Import job not found",
			},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve import job",
			},
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ExportProducts downloads every stored product as CSV, using the import
// column layout
// GET /api/v1/products/export
func (h *ImportHandler) ExportProducts(c *gin.Context) {
	products, err := h.exporter.ListAllProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EXPORT_FAILED",
				Message: "Failed to export products",
			},
		})
		return
	}

	filename := fmt.Sprintf("products_export_%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	columns := models.ProductImportColumns(nil)
	headers := make([]string, 0, len(columns)+1)
	headers = append(headers, "id")
	for _, col := range columns {
		headers = append(headers, col.Name)
	}
	writer.Write(headers)

	for _, p := range products {
		writer.Write(exportRow(&p))
	}
}

// exportRow lays a product out in the import column order
func exportRow(p *models.Product) []string {
	subcategory := ""
	if p.SubcategoryID != nil {
		subcategory = strconv.FormatUint(uint64(*p.SubcategoryID), 10)
	}
	features := make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		features = append(features, fmt.Sprint(f))
	}
	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		p.Name,
		deref(p.Slug),
		p.Category,
		subcategory,
		deref(p.ShortDescription),
		deref(p.Description),
		deref(p.Specifications),
		deref(p.SKU),
		deref(p.MetaKeywords),
		deref(p.MetaTitle),
		deref(p.MetaDescription),
		string(p.Status),
		strconv.FormatBool(p.Featured),
		deref(p.Image),
		deref(p.PDF),
		strings.Join(features, "|"),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
