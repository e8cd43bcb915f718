package services

import (
	"testing"

	"catalog-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standardFields = []string{"name", "category"}

func rawRow(number int, columns []string, cells ...string) models.RawRow {
	return models.RawRow{Number: number, Columns: columns, Cells: cells}
}

func TestValidateMissingCategory(t *testing.T) {
	columns := []string{"name", "slug", "category"}
	rows := []models.RawRow{
		rawRow(2, columns, "Zebra ZD421", "zebra-zd421", "Label Printers"),
		rawRow(3, columns, "Epson L3250", "epson-l3250", "   "),
	}

	result := NewSchemaValidator(standardFields).Validate(rows)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].RowNumber)
	assert.Equal(t, "Epson L3250", result.Errors[0].ProductName)
	assert.Equal(t, "category", result.Errors[0].Field)
	assert.Equal(t, "Category is required", result.Errors[0].Message)
}

func TestValidateMissingBothRequiredFields(t *testing.T) {
	rows := []models.RawRow{rawRow(2, []string{"sku"}, "X1")}

	result := NewSchemaValidator(standardFields).Validate(rows)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Row 2", result.Errors[0].ProductName)
	assert.Equal(t, "name", result.Errors[0].Field)
	assert.Equal(t, "category", result.Errors[1].Field)
}

func TestValidateStrictProfile(t *testing.T) {
	columns := []string{"name", "category", "slug", "sku"}
	rows := []models.RawRow{rawRow(2, columns, "Zebra", "Printers", "", "")}

	assert.True(t, NewSchemaValidator(standardFields).Validate(rows).IsValid)

	result := NewSchemaValidator([]string{"Name", "Category", "Slug", "SKU"}).Validate(rows)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Slug is required", result.Errors[0].Message)
	assert.Equal(t, "SKU is required", result.Errors[1].Message)
}

func TestValidateEnumeratedValues(t *testing.T) {
	columns := []string{"name", "category", "status", "featured"}
	tests := []struct {
		name    string
		cells   []string
		wantErr string
	}{
		{name: "valid values", cells: []string{"A", "B", "Active", "YES"}},
		{name: "blank values are skipped", cells: []string{"A", "B", " ", ""}},
		{name: "numeric featured", cells: []string{"A", "B", "inactive", "0"}},
		{name: "bad status", cells: []string{"A", "B", "draft", "true"}, wantErr: "status"},
		{name: "bad featured", cells: []string{"A", "B", "active", "maybe"}, wantErr: "featured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewSchemaValidator(standardFields).Validate([]models.RawRow{rawRow(2, columns, tt.cells...)})
			if tt.wantErr == "" {
				assert.True(t, result.IsValid)
				assert.Empty(t, result.Errors)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.wantErr, result.Errors[0].Field)
		})
	}
}

func TestValidateLocalPaths(t *testing.T) {
	columns := []string{"name", "category", "image", "pdf"}
	rows := []models.RawRow{
		rawRow(2, columns, "Scanner", "Scanners", `C:\Users\photo.jpg`, ""),
		rawRow(3, columns, "Printer", "Printers", "https://cdn.example.com/p.jpg", "c:/docs/sheet.pdf"),
		rawRow(4, columns, "Copier", "Copiers", "/uploads/products/copier.jpg", "http://example.com/a.pdf"),
	}

	result := NewSchemaValidator(standardFields).Validate(rows)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].RowNumber)
	assert.Equal(t, "image", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "local file path")
	assert.Equal(t, 3, result.Errors[1].RowNumber)
	assert.Equal(t, "pdf", result.Errors[1].Field)
}

func TestValidateTrailingEmptyColumns(t *testing.T) {
	columns := []string{"name", "category"}

	result := NewSchemaValidator(standardFields).Validate([]models.RawRow{
		rawRow(2, columns, "Zebra", "Printers", "", "  "),
	})
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "empty columns at the end")

	result = NewSchemaValidator(standardFields).Validate([]models.RawRow{
		rawRow(2, columns, "Zebra", "Printers", "extra"),
	})
	assert.True(t, result.IsValid)
}

func TestValidateKeepsRowOrder(t *testing.T) {
	columns := []string{"name", "category"}
	rows := []models.RawRow{
		rawRow(2, columns, "", "A"),
		rawRow(3, columns, "ok", "B"),
		rawRow(4, columns, "x", ""),
	}

	result := NewSchemaValidator(standardFields).Validate(rows)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].RowNumber)
	assert.Equal(t, 4, result.Errors[1].RowNumber)
}

func TestValidateNoRows(t *testing.T) {
	result := NewSchemaValidator(standardFields).Validate(nil)
	assert.True(t, result.IsValid)
	assert.NotNil(t, result.Errors)
}
