package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute  // Single product cache
	ProductListCacheTTL = 2 * time.Minute  // Product list cache (shorter due to frequent changes)
	CategoryCacheTTL    = 30 * time.Minute // Categories rarely change
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

var (
	// ErrDuplicateSlug is returned when an insert hits the products slug index
	ErrDuplicateSlug = errors.New("duplicate slug")
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
)

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	repo := &ProductsRepository{
		db:    db,
		redis: redis,
	}

	// Initialize CacheLayer with the existing Redis client
	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "catalog:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

func productCacheKey(id uint) string {
	return fmt.Sprintf("products:item:%d", id)
}

// InvalidateProductCaches drops every cached product list. Single product
// entries are keyed by id and are dropped on delete.
func (r *ProductsRepository) InvalidateProductCaches(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, "products:list:*")
}

func (r *ProductsRepository) invalidateProduct(ctx context.Context, id uint) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, productCacheKey(id))
	_ = r.cache.DeletePattern(ctx, "products:list:*")
}

func (r *ProductsRepository) invalidateCategoryCaches(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, "categories:*")
}

// ============================================================================
// Import store operations
// ============================================================================

// FindBySlug returns the product holding slug, or nil when the slug is free.
// Soft-deleted rows still hold their slug in the unique index, so they count.
func (r *ProductsRepository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Unscoped().
		Where("slug = ?", slug).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// InsertProduct stores one canonical import record and returns its id.
// A slug collision is reported as ErrDuplicateSlug.
func (r *ProductsRepository) InsertProduct(ctx context.Context, record *models.CanonicalProduct) (uint, error) {
	product := record.ToProduct()
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if IsDuplicateSlugError(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateSlug, derefString(record.Slug))
		}
		return 0, err
	}
	return product.ID, nil
}

// IsDuplicateSlugError reports whether err is a unique violation on the
// products slug index
func IsDuplicateSlugError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateSlug) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "slug")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return strings.Contains(err.Error(), "slug")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") && strings.Contains(msg, "slug")
}

// ============================================================================
// Product CRUD Operations
// ============================================================================

// CreateProduct creates a single product. The slug is derived from the name
// when absent and disambiguated when already taken.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	if product.Slug == nil || strings.TrimSpace(*product.Slug) == "" {
		slug := generateSlug(product.Name)
		product.Slug = &slug
	}

	existing, err := r.FindBySlug(ctx, *product.Slug)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if existing != nil {
		// Ensure slug uniqueness by appending the first 8 chars of a fresh uuid
		uniqueSlug := fmt.Sprintf("%s-%s", *product.Slug, uuid.New().String()[:8])
		product.Slug = &uniqueSlug
	}

	err = r.db.WithContext(ctx).Create(product).Error
	if err != nil {
		if IsDuplicateSlugError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, *product.Slug)
		}
		return err
	}
	r.InvalidateProductCaches(ctx)
	return nil
}

// GetProductByID retrieves a product by ID with caching
func (r *ProductsRepository) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	load := func() (*models.Product, error) {
		var product models.Product
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &product, nil
	}

	if r.cache == nil {
		return load()
	}

	var product models.Product
	err := r.cache.GetOrSetJSON(ctx, productCacheKey(id), &product, ProductCacheTTL, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySlug retrieves an active product for the storefront
func (r *ProductsRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, models.ProductStatusActive).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

type productPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// ListProducts retrieves products with filters and pagination
func (r *ProductsRepository) ListProducts(ctx context.Context, req *models.ListProductsRequest) ([]models.Product, int64, error) {
	load := func() (*productPage, error) {
		query := r.db.WithContext(ctx).Model(&models.Product{})
		if req.Category != nil && *req.Category != "" {
			query = query.Where("category = ?", *req.Category)
		}
		if req.Status != nil {
			query = query.Where("status = ?", *req.Status)
		}
		if req.Featured != nil {
			query = query.Where("featured = ?", *req.Featured)
		}

		var page productPage
		if err := query.Count(&page.Total).Error; err != nil {
			return nil, err
		}
		offset := (req.Page - 1) * req.Limit
		if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.Limit).Find(&page.Products).Error; err != nil {
			return nil, err
		}
		return &page, nil
	}

	if r.cache == nil {
		page, err := load()
		if err != nil {
			return nil, 0, err
		}
		return page.Products, page.Total, nil
	}

	var page productPage
	cacheKey := generateListCacheKey("products:list", req)
	err := r.cache.GetOrSetJSON(ctx, cacheKey, &page, ProductListCacheTTL, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Products, page.Total, nil
}

// ListAllProducts returns every stored product in id order, for export
func (r *ProductsRepository) ListAllProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteProduct soft deletes a product
func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidateProduct(ctx, id)
	return nil
}

// ============================================================================
// Categories, subcategories and brands
// ============================================================================

// ListCategories returns all categories ordered by name
func (r *ProductsRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	load := func() ([]models.Category, error) {
		var categories []models.Category
		if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
			return nil, err
		}
		return categories, nil
	}

	if r.cache == nil {
		return load()
	}

	var categories []models.Category
	err := r.cache.GetOrSetJSON(ctx, "categories:list", &categories, CategoryCacheTTL, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *ProductsRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	category.Slug = generateSlug(category.Name)
	category.CreatedAt = time.Now()
	category.UpdatedAt = time.Now()

	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return err
	}
	r.invalidateCategoryCaches(ctx)
	return nil
}

// ListSubcategories returns the subcategories of one category
func (r *ProductsRepository) ListSubcategories(ctx context.Context, categoryID uint) ([]models.Subcategory, error) {
	var subcategories []models.Subcategory
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name ASC").
		Find(&subcategories).Error
	if err != nil {
		return nil, err
	}
	return subcategories, nil
}

func (r *ProductsRepository) CreateSubcategory(ctx context.Context, subcategory *models.Subcategory) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("id = ?", subcategory.CategoryID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to lookup category: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}

	subcategory.Slug = generateSlug(subcategory.Name)
	subcategory.CreatedAt = time.Now()
	subcategory.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Create(subcategory).Error; err != nil {
		// Two categories may share a subcategory name
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			subcategory.Slug = fmt.Sprintf("%s-%d", subcategory.Slug, subcategory.CategoryID)
			return r.db.WithContext(ctx).Create(subcategory).Error
		}
		return err
	}
	return nil
}

func (r *ProductsRepository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

func (r *ProductsRepository) CreateBrand(ctx context.Context, brand *models.Brand) error {
	brand.Slug = generateSlug(brand.Name)
	brand.CreatedAt = time.Now()
	brand.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(brand).Error
}

// generateSlug creates a URL-friendly slug from a name
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	// Collapse runs of hyphens left by stripped characters
	out := result.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
