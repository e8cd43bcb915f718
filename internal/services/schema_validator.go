package services

import (
	"fmt"
	"strings"

	"catalog-service/internal/models"
)

var (
	allowedStatuses = []string{string(models.ProductStatusActive), string(models.ProductStatusInactive)}
	allowedFeatured = []string{"true", "false", "1", "0", "yes", "no"}
)

// Display names used in validation messages
var fieldLabels = map[string]string{
	models.ColumnName:             "Name",
	models.ColumnSlug:             "Slug",
	models.ColumnCategory:         "Category",
	models.ColumnSubcategory:      "Subcategory",
	models.ColumnSubcategoryID:    "Subcategory ID",
	models.ColumnShortDescription: "Short description",
	models.ColumnDescription:      "Description",
	models.ColumnSpecifications:   "Specifications",
	models.ColumnSKU:              "SKU",
	models.ColumnMetaKeywords:     "Meta keywords",
	models.ColumnMetaTitle:        "Meta title",
	models.ColumnMetaDescription:  "Meta description",
	models.ColumnStatus:           "Status",
	models.ColumnFeatured:         "Featured",
	models.ColumnImage:            "Image",
	models.ColumnPDF:              "PDF",
	models.ColumnFeatures:         "Features",
}

func fieldLabel(column string) string {
	if label, ok := fieldLabels[column]; ok {
		return label
	}
	return column
}

// SchemaValidator checks every row against the import rules. A single
// violation anywhere fails the whole job.
type SchemaValidator struct {
	requiredFields []string
}

// NewSchemaValidator builds a validator enforcing the given column keys
func NewSchemaValidator(requiredFields []string) *SchemaValidator {
	fields := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		if key := models.NormalizeColumn(f); key != "" {
			fields = append(fields, key)
		}
	}
	return &SchemaValidator{requiredFields: fields}
}

// RequiredFields returns the enforced column keys
func (v *SchemaValidator) RequiredFields() []string {
	return append([]string(nil), v.requiredFields...)
}

// Validate checks all rows in order and collects every violation
func (v *SchemaValidator) Validate(rows []models.RawRow) models.ValidationResult {
	errs := make([]models.ValidationError, 0)
	for _, row := range rows {
		errs = append(errs, v.validateRow(row)...)
	}
	return models.ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

func (v *SchemaValidator) validateRow(row models.RawRow) []models.ValidationError {
	var errs []models.ValidationError
	label := row.Label()
	add := func(field, message string) {
		errs = append(errs, models.ValidationError{
			RowNumber:   row.Number,
			ProductName: label,
			Field:       field,
			Message:     message,
		})
	}

	for _, field := range v.requiredFields {
		if row.Value(field) == "" {
			add(field, fmt.Sprintf("%s is required", fieldLabel(field)))
		}
	}

	if status := row.Value(models.ColumnStatus); status != "" {
		if !oneOf(strings.ToLower(status), allowedStatuses) {
			add(models.ColumnStatus, fmt.Sprintf("Invalid status %q. Must be one of: %s",
				status, strings.Join(allowedStatuses, ", ")))
		}
	}

	if featured := row.Value(models.ColumnFeatured); featured != "" {
		if !oneOf(strings.ToLower(featured), allowedFeatured) {
			add(models.ColumnFeatured, fmt.Sprintf("Invalid featured value %q. Must be one of: %s",
				featured, strings.Join(allowedFeatured, ", ")))
		}
	}

	for _, field := range []string{models.ColumnImage, models.ColumnPDF} {
		if value := row.Value(field); isLocalPath(value) {
			add(field, fmt.Sprintf("%s %q is a local file path. Use a URL or a server path instead",
				fieldLabel(field), value))
		}
	}

	if hasEmptyTrailingColumns(row) {
		add("", "Row has empty columns at the end. Remove trailing separators and try again")
	}

	return errs
}

// isLocalPath reports whether value points into a Windows drive
func isLocalPath(value string) bool {
	v := strings.ToLower(value)
	return strings.Contains(v, `c:\`) || strings.Contains(v, "c:/")
}

// hasEmptyTrailingColumns reports a row that is wider than the header with
// nothing but blanks in the extra cells
func hasEmptyTrailingColumns(row models.RawRow) bool {
	if len(row.Cells) <= len(row.Columns) {
		return false
	}
	for _, cell := range row.Cells[len(row.Columns):] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
