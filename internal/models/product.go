package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ProductStatus represents the storefront visibility of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Valid reports whether s is one of the known statuses
func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product is a printer/scanner catalog entry.
// Slug is unique across the table, including soft-deleted rows.
type Product struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	Name             string          `json:"name" gorm:"not null"`
	Slug             *string         `json:"slug,omitempty" gorm:"uniqueIndex:idx_products_slug"`
	Category         string          `json:"category" gorm:"not null;index"`
	SubcategoryID    *uint           `json:"subcategoryId,omitempty" gorm:"index"`
	ShortDescription *string         `json:"shortDescription,omitempty" gorm:"type:text"`
	Description      *string         `json:"description,omitempty" gorm:"type:text"`
	Specifications   *string         `json:"specifications,omitempty" gorm:"type:text"`
	SKU              *string         `json:"sku,omitempty" gorm:"index"`
	MetaKeywords     *string         `json:"metaKeywords,omitempty" gorm:"type:text"`
	MetaTitle        *string         `json:"metaTitle,omitempty" gorm:"type:text"`
	MetaDescription  *string         `json:"metaDescription,omitempty" gorm:"type:text"`
	Status           ProductStatus   `json:"status" gorm:"not null;default:'active';index"`
	Featured         bool            `json:"featured" gorm:"not null;default:false"`
	Image            *string         `json:"image,omitempty"`
	PDF              *string         `json:"pdf,omitempty" gorm:"column:pdf"`
	Features         JSONArray       `json:"features" gorm:"type:jsonb"`
	InStock          bool            `json:"inStock" gorm:"not null;default:true"`
	Rating           float64         `json:"rating" gorm:"not null;default:0"`
	Reviews          int             `json:"reviews" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	DeletedAt        *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Category groups products on the storefront
type Category struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"not null;uniqueIndex"`
	Slug        string          `json:"slug" gorm:"not null;uniqueIndex"`
	Description *string         `json:"description,omitempty" gorm:"type:text"`
	Image       *string         `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Subcategory belongs to a category
type Subcategory struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	CategoryID uint            `json:"categoryId" gorm:"not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	Slug       string          `json:"slug" gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DeletedAt  *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Brand is a printer/scanner manufacturer
type Brand struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Name      string          `json:"name" gorm:"not null;uniqueIndex"`
	Slug      string          `json:"slug" gorm:"not null;uniqueIndex"`
	Logo      *string         `json:"logo,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// CreateProductRequest represents a request to create a single product.
// Unlike the bulk import path, an absent slug is derived from the name.
type CreateProductRequest struct {
	Name             string   `json:"name" binding:"required"`
	Slug             *string  `json:"slug,omitempty"`
	Category         string   `json:"category" binding:"required"`
	SubcategoryID    *uint    `json:"subcategoryId,omitempty"`
	ShortDescription *string  `json:"shortDescription,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Specifications   *string  `json:"specifications,omitempty"`
	SKU              *string  `json:"sku,omitempty"`
	MetaKeywords     *string  `json:"metaKeywords,omitempty"`
	MetaTitle        *string  `json:"metaTitle,omitempty"`
	MetaDescription  *string  `json:"metaDescription,omitempty"`
	Status           *string  `json:"status,omitempty"`
	Featured         *bool    `json:"featured,omitempty"`
	Image            *string  `json:"image,omitempty"`
	PDF              *string  `json:"pdf,omitempty"`
	Features         []string `json:"features,omitempty"`
}

// ListProductsRequest holds list filters and pagination
type ListProductsRequest struct {
	Page     int
	Limit    int
	Category *string
	Status   *ProductStatus
	Featured *bool
}

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// CreateSubcategoryRequest represents a request to create a subcategory
type CreateSubcategoryRequest struct {
	CategoryID uint   `json:"categoryId" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// CreateBrandRequest represents a request to create a brand
type CreateBrandRequest struct {
	Name string  `json:"name" binding:"required"`
	Logo *string `json:"logo,omitempty"`
}

// Response types
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the Subcategory model
func (Subcategory) TableName() string {
	return "subcategories"
}

// TableName returns the table name for the Brand model
func (Brand) TableName() string {
	return "brands"
}
