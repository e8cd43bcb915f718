package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "empty selects standard", value: "", want: []string{"name", "category"}},
		{name: "standard keyword", value: "standard", want: []string{"name", "category"}},
		{name: "strict keyword", value: "STRICT", want: []string{"name", "category", "slug", "sku"}},
		{name: "explicit list is normalized", value: "Name, Category , SKU", want: []string{"name", "category", "sku"}},
		{name: "duplicates dropped", value: "name,name,short_description", want: []string{"name", "shortdescription"}},
		{name: "only separators falls back", value: " , ,", want: []string{"name", "category"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRequiredFields(tt.value))
		})
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("IMPORT_INSERT_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, getDuration("IMPORT_INSERT_TIMEOUT", time.Second))

	t.Setenv("IMPORT_INSERT_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getDuration("IMPORT_INSERT_TIMEOUT", time.Second))

	t.Setenv("IMPORT_INSERT_TIMEOUT", "")
	assert.Equal(t, time.Second, getDuration("IMPORT_INSERT_TIMEOUT", time.Second))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"https://shop.example.com", "http://localhost:3000"},
		splitList(" https://shop.example.com ,, http://localhost:3000"))
}
