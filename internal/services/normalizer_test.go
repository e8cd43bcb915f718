package services

import (
	"testing"

	"catalog-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFullRow(t *testing.T) {
	columns := []string{"name", "slug", "category", "subcategoryid", "shortdescription", "sku",
		"status", "featured", "image", "pdf", "features", "metatitle"}
	row := rawRow(5, columns,
		"  Zebra ZD421  ", " zebra-zd421 ", "Label Printers", "7", "  ", "ZD4A042",
		" Inactive ", "Yes", "/uploads/zd421.jpg", `C:\docs\zd421.pdf`, "USB | Bluetooth\nWi-Fi", "")

	p := NewRecordNormalizer().Normalize(row)

	assert.Equal(t, 5, p.RowNumber)
	assert.Equal(t, "Zebra ZD421", p.Name)
	require.NotNil(t, p.Slug)
	assert.Equal(t, "zebra-zd421", *p.Slug)
	assert.Equal(t, "Label Printers", p.Category)
	require.NotNil(t, p.SubcategoryID)
	assert.Equal(t, uint(7), *p.SubcategoryID)
	assert.Nil(t, p.ShortDescription)
	require.NotNil(t, p.SKU)
	assert.Equal(t, "ZD4A042", *p.SKU)
	assert.Equal(t, models.ProductStatusInactive, p.Status)
	assert.True(t, p.Featured)
	require.NotNil(t, p.Image)
	assert.Equal(t, "/uploads/zd421.jpg", *p.Image)
	assert.Nil(t, p.PDF)
	assert.Equal(t, []string{"USB", "Bluetooth", "Wi-Fi"}, p.Features)
	assert.Nil(t, p.MetaTitle)
	assert.True(t, p.InStock)
	assert.Zero(t, p.Rating)
	assert.Zero(t, p.Reviews)
}

func TestNormalizeDefaults(t *testing.T) {
	p := NewRecordNormalizer().Normalize(rawRow(2, []string{"name", "category"}, "Canon LiDE 300", "Scanners"))

	assert.Nil(t, p.Slug)
	assert.Equal(t, models.ProductStatusActive, p.Status)
	assert.False(t, p.Featured)
	assert.Nil(t, p.SubcategoryID)
	assert.NotNil(t, p.Features)
	assert.Empty(t, p.Features)
	assert.Nil(t, p.Description)
}

func TestNormalizeSubcategory(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		cells   []string
		want    *uint
	}{
		{name: "textual name is not resolved", columns: []string{"subcategory"}, cells: []string{"Thermal"}},
		{name: "numeric subcategory column", columns: []string{"subcategory"}, cells: []string{"12"}, want: uintPtr(12)},
		{name: "id column wins", columns: []string{"subcategory", "subcategoryid"}, cells: []string{"Thermal", "3"}, want: uintPtr(3)},
		{name: "non numeric id", columns: []string{"subcategoryid"}, cells: []string{"abc"}},
		{name: "zero id", columns: []string{"subcategoryid"}, cells: []string{"0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRecordNormalizer().Normalize(rawRow(2, tt.columns, tt.cells...))
			assert.Equal(t, tt.want, p.SubcategoryID)
		})
	}
}

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "json list", in: `["Duplex", " Ethernet ", "", 3]`, want: []string{"Duplex", "Ethernet", "3"}},
		{name: "pipe list", in: "Duplex|Ethernet||", want: []string{"Duplex", "Ethernet"}},
		{name: "single value", in: "Duplex printing", want: []string{"Duplex printing"}},
		{name: "broken json falls back to splitting", in: "[Duplex|Fax", want: []string{"[Duplex", "Fax"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFeatures(tt.in))
		})
	}
}

func uintPtr(v uint) *uint {
	return &v
}
