package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
	ImportFormatXLS  ImportFormat = "xls"
)

// ImportJobStatus represents the status of an async import job
type ImportJobStatus string

const (
	ImportJobStatusPending    ImportJobStatus = "pending"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"
)

// Import column keys, in their normalized header form
const (
	ColumnName             = "name"
	ColumnSlug             = "slug"
	ColumnCategory         = "category"
	ColumnSubcategory      = "subcategory"
	ColumnSubcategoryID    = "subcategoryid"
	ColumnShortDescription = "shortdescription"
	ColumnDescription      = "description"
	ColumnSpecifications   = "specifications"
	ColumnSKU              = "sku"
	ColumnMetaKeywords     = "metakeywords"
	ColumnMetaTitle        = "metatitle"
	ColumnMetaDescription  = "metadescription"
	ColumnStatus           = "status"
	ColumnFeatured         = "featured"
	ColumnImage            = "image"
	ColumnPDF              = "pdf"
	ColumnFeatures         = "features"
)

// NormalizeColumn maps a header cell to its column key:
// "Short Description *", "short_description" and "shortDescription" all
// become "shortdescription".
func NormalizeColumn(header string) string {
	h := strings.TrimSpace(strings.ToLower(header))
	h = strings.TrimSuffix(h, "*")
	h = strings.TrimSpace(h)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// RawRow is one spreadsheet data row. Columns holds the header keys in file
// order; Cells holds the raw values and may be wider than Columns when the
// row carries extra trailing cells.
type RawRow struct {
	Number  int      `json:"row"` // 1-based line in the original file, header is line 1
	Columns []string `json:"-"`
	Cells   []string `json:"-"`
}

// Get returns the raw cell value for a column key
func (r RawRow) Get(column string) (string, bool) {
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Cells) {
				return r.Cells[i], true
			}
			return "", true
		}
	}
	return "", false
}

// Value returns the trimmed cell value for a column key, or "" when absent
func (r RawRow) Value(column string) string {
	v, _ := r.Get(column)
	return strings.TrimSpace(v)
}

// Label is a best-effort display name for error reports
func (r RawRow) Label() string {
	if name := r.Value(ColumnName); name != "" {
		return name
	}
	return RowLabel(r.Number)
}

// RowLabel is the fallback label for a row without a name
func RowLabel(number int) string {
	return fmt.Sprintf("Row %d", number)
}

// ValidationError reports one rule violation on one row
type ValidationError struct {
	RowNumber   int    `json:"rowNumber"`
	ProductName string `json:"productName"`
	Field       string `json:"field,omitempty"`
	Message     string `json:"message"`
}

// ValidationResult is the outcome of validating all rows of a job
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors"`
}

// CanonicalProduct is a normalized import row ready for storage
type CanonicalProduct struct {
	RowNumber        int
	Name             string
	Slug             *string
	Category         string
	SubcategoryID    *uint
	ShortDescription *string
	Description      *string
	Specifications   *string
	SKU              *string
	MetaKeywords     *string
	MetaTitle        *string
	MetaDescription  *string
	Status           ProductStatus
	Featured         bool
	Image            *string
	PDF              *string
	Features         []string
	InStock          bool
	Rating           float64
	Reviews          int
}

// ToProduct builds the storage entity for a canonical record
func (c *CanonicalProduct) ToProduct() *Product {
	features := make(JSONArray, 0, len(c.Features))
	for _, f := range c.Features {
		features = append(features, f)
	}
	return &Product{
		Name:             c.Name,
		Slug:             c.Slug,
		Category:         c.Category,
		SubcategoryID:    c.SubcategoryID,
		ShortDescription: c.ShortDescription,
		Description:      c.Description,
		Specifications:   c.Specifications,
		SKU:              c.SKU,
		MetaKeywords:     c.MetaKeywords,
		MetaTitle:        c.MetaTitle,
		MetaDescription:  c.MetaDescription,
		Status:           c.Status,
		Featured:         c.Featured,
		Image:            c.Image,
		PDF:              c.PDF,
		Features:         features,
		InStock:          c.InStock,
		Rating:           c.Rating,
		Reviews:          c.Reviews,
	}
}

// Failure codes reported per row
const (
	FailureCodeTimeout       = "TIMEOUT"
	FailureCodeDuplicateSlug = "DUPLICATE_SLUG"
	FailureCodeStoreError    = "STORE_ERROR"
)

// ImportSuccess records a stored row
type ImportSuccess struct {
	RowNumber int     `json:"rowNumber"`
	Name      string  `json:"name"`
	ID        uint    `json:"id"`
	Slug      *string `json:"slug,omitempty"`
	Category  string  `json:"-"`
	SKU       *string `json:"-"`
	Status    string  `json:"-"`
}

// ImportFailure records a row that could not be stored
type ImportFailure struct {
	RowNumber   int    `json:"rowNumber"`
	ProductName string `json:"productName"`
	Code        string `json:"code"`
	Error       string `json:"error"`
}

// InsertionOutcome is the per-record result; exactly one field is set
type InsertionOutcome struct {
	Success *ImportSuccess
	Failure *ImportFailure
}

// ImportReport summarizes one import job
type ImportReport struct {
	SuccessCount       int             `json:"successCount"`
	Successes          []ImportSuccess `json:"-"`
	Failures           []ImportFailure `json:"failures"`
	TotalRows          int             `json:"totalRows"`
	SuccessRatePercent int             `json:"successRatePercent"`
	ProcessedAt        time.Time       `json:"processedAt"`
}

// ImportSummary is the summary block of an import response
type ImportSummary struct {
	SuccessRate string `json:"successRate"`
	ProcessedAt string `json:"processedAt"`
}

// ImportResponse is returned when an import job completes
type ImportResponse struct {
	Message    string          `json:"message"`
	Successful int             `json:"successful"`
	Failed     []ImportFailure `json:"failed"`
	Total      int             `json:"total"`
	Summary    ImportSummary   `json:"summary"`
}

// NewImportResponse renders a report for the caller
func NewImportResponse(report *ImportReport) ImportResponse {
	failed := report.Failures
	if failed == nil {
		failed = []ImportFailure{}
	}
	message := "Import completed successfully"
	if len(failed) > 0 {
		message = "Import completed with errors"
	}
	return ImportResponse{
		Message:    message,
		Successful: report.SuccessCount,
		Failed:     failed,
		Total:      report.TotalRows,
		Summary: ImportSummary{
			SuccessRate: strconv.Itoa(report.SuccessRatePercent) + "%",
			ProcessedAt: report.ProcessedAt.UTC().Format(time.RFC3339),
		},
	}
}

// ImportErrorResponse is the body of a rejected import
type ImportErrorResponse struct {
	Error   string            `json:"error"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details string            `json:"details,omitempty"`
}

// ImportJob tracks an async import
type ImportJob struct {
	ID          string            `json:"jobId"`
	Status      ImportJobStatus   `json:"status"`
	FileName    string            `json:"fileName"`
	FilePath    string            `json:"-"`
	Extension   string            `json:"-"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Result      *ImportResponse   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Errors      []ValidationError `json:"errors,omitempty"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean, json
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ProductImportColumns returns the column definitions for product import.
// required lists the column keys the running configuration enforces.
func ProductImportColumns(required []string) []ImportTemplateColumn {
	columns := []ImportTemplateColumn{
		{Name: "name", Description: "Product name", Type: "string", Example: "LaserJet Pro M404dn"},
		{Name: "slug", Description: "URL slug, must be unique (a suffix is added on collision)", Type: "string", Example: "laserjet-pro-m404dn"},
		{Name: "category", Description: "Category name", Type: "string", Example: "Laser Printers"},
		{Name: "subcategory_id", Description: "Numeric subcategory id (names are not resolved)", Type: "number", Example: ""},
		{Name: "short_description", Description: "One-line summary", Type: "string", Example: "Fast mono laser printer"},
		{Name: "description", Description: "Full description", Type: "string", Example: ""},
		{Name: "specifications", Description: "Free text or JSON list", Type: "json", Example: ""},
		{Name: "sku", Description: "Stock keeping unit", Type: "string", Example: "W1A53A"},
		{Name: "meta_keywords", Description: "SEO keywords", Type: "string", Example: ""},
		{Name: "meta_title", Description: "SEO title", Type: "string", Example: ""},
		{Name: "meta_description", Description: "SEO description", Type: "string", Example: ""},
		{Name: "status", Description: "active or inactive (default active)", Type: "string", Example: "active"},
		{Name: "featured", Description: "true/false, 1/0, yes/no", Type: "boolean", Example: "false"},
		{Name: "image", Description: "Image URL or server path (no local drive paths)", Type: "string", Example: "/uploads/products/m404dn.jpg"},
		{Name: "pdf", Description: "Datasheet URL or server path (no local drive paths)", Type: "string", Example: ""},
		{Name: "features", Description: "JSON list or values separated by |", Type: "json", Example: "Duplex|Ethernet"},
	}
	for i := range columns {
		key := NormalizeColumn(columns[i].Name)
		for _, r := range required {
			if r == key {
				columns[i].Required = true
			}
		}
	}
	return columns
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate(required []string) ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(required),
	}
}
