package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"catalog-service/internal/models"
)

// RecordNormalizer converts validated rows into canonical products.
// It performs no I/O.
type RecordNormalizer struct{}

func NewRecordNormalizer() *RecordNormalizer {
	return &RecordNormalizer{}
}

// Normalize maps one raw row onto a canonical product. The slug is left nil
// when the row has none; uniqueness is settled at insert time.
func (n *RecordNormalizer) Normalize(row models.RawRow) *models.CanonicalProduct {
	status := models.ProductStatus(strings.ToLower(row.Value(models.ColumnStatus)))
	if status == "" {
		status = models.ProductStatusActive
	}

	return &models.CanonicalProduct{
		RowNumber:        row.Number,
		Name:             row.Value(models.ColumnName),
		Slug:             optionalString(row.Value(models.ColumnSlug)),
		Category:         row.Value(models.ColumnCategory),
		SubcategoryID:    parseSubcategoryID(row),
		ShortDescription: optionalString(row.Value(models.ColumnShortDescription)),
		Description:      optionalString(row.Value(models.ColumnDescription)),
		Specifications:   optionalString(row.Value(models.ColumnSpecifications)),
		SKU:              optionalString(row.Value(models.ColumnSKU)),
		MetaKeywords:     optionalString(row.Value(models.ColumnMetaKeywords)),
		MetaTitle:        optionalString(row.Value(models.ColumnMetaTitle)),
		MetaDescription:  optionalString(row.Value(models.ColumnMetaDescription)),
		Status:           status,
		Featured:         parseFeatured(row.Value(models.ColumnFeatured)),
		Image:            servablePath(row.Value(models.ColumnImage)),
		PDF:              servablePath(row.Value(models.ColumnPDF)),
		Features:         parseFeatures(row.Value(models.ColumnFeatures)),
		InStock:          true,
		Rating:           0,
		Reviews:          0,
	}
}

// optionalString returns nil for empty strings, pointer otherwise
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func parseFeatured(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// servablePath drops values that point at a local drive
func servablePath(value string) *string {
	if isLocalPath(value) {
		return nil
	}
	return optionalString(value)
}

// parseSubcategoryID accepts a numeric id only. Subcategory names are not
// looked up and yield nil.
func parseSubcategoryID(row models.RawRow) *uint {
	for _, column := range []string{models.ColumnSubcategoryID, models.ColumnSubcategory} {
		value := row.Value(column)
		if value == "" {
			continue
		}
		id, err := strconv.ParseUint(value, 10, 32)
		if err != nil || id == 0 {
			continue
		}
		v := uint(id)
		return &v
	}
	return nil
}

// parseFeatures reads a JSON list or a list separated by "|" or newlines
func parseFeatures(value string) []string {
	features := make([]string, 0)
	if value == "" {
		return features
	}

	if strings.HasPrefix(value, "[") {
		var items []interface{}
		if err := json.Unmarshal([]byte(value), &items); err == nil {
			for _, item := range items {
				s := strings.TrimSpace(fmt.Sprint(item))
				if item != nil && s != "" {
					features = append(features, s)
				}
			}
			return features
		}
	}

	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '|' || r == '\n' || r == '\r'
	})
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			features = append(features, s)
		}
	}
	return features
}
