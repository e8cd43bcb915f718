package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ProductsHandler struct {
	repo            *repository.ProductsRepository
	eventsPublisher *events.Publisher
	pageSizes       PageSizes
	logger          *logrus.Entry
}

// PageSizes bounds the limit query parameter of list endpoints
type PageSizes struct {
	Default int
	Max     int
}

func (p PageSizes) normalized() PageSizes {
	if p.Max <= 0 {
		p.Max = 100
	}
	if p.Default <= 0 {
		p.Default = 20
	}
	if p.Default > p.Max {
		p.Default = p.Max
	}
	return p
}

func NewProductsHandler(repo *repository.ProductsRepository, eventsPublisher *events.Publisher, pageSizes PageSizes, logger *logrus.Entry) *ProductsHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ProductsHandler{
		repo:            repo,
		eventsPublisher: eventsPublisher,
		pageSizes:       pageSizes.normalized(),
		logger:          logger.WithField("component", "products-handler"),
	}
}

// HealthCheck reports service liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "catalog-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// actorFromContext reads the caller identity set by the auth middleware
func actorFromContext(c *gin.Context) events.Actor {
	return events.Actor{
		ID:        c.GetString("user_id"),
		Name:      c.GetString("user_name"),
		Email:     c.GetString("user_email"),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid ID format",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// CreateProduct creates a new product
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	status := models.ProductStatusActive
	if req.Status != nil && *req.Status != "" {
		status = models.ProductStatus(strings.ToLower(*req.Status))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Status must be one of: active, inactive",
					Field:   "status",
				},
			})
			return
		}
	}

	features := make(models.JSONArray, 0, len(req.Features))
	for _, f := range req.Features {
		features = append(features, f)
	}

	product := &models.Product{
		Name:             strings.TrimSpace(req.Name),
		Slug:             req.Slug,
		Category:         strings.TrimSpace(req.Category),
		SubcategoryID:    req.SubcategoryID,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Specifications:   req.Specifications,
		SKU:              req.SKU,
		MetaKeywords:     req.MetaKeywords,
		MetaTitle:        req.MetaTitle,
		MetaDescription:  req.MetaDescription,
		Status:           status,
		Image:            req.Image,
		PDF:              req.PDF,
		Features:         features,
		InStock:          true,
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}

	if err := h.repo.CreateProduct(c.Request.Context(), product); err != nil {
		code := http.StatusInternalServerError
		errCode := "CREATE_FAILED"
		if errors.Is(err, repository.ErrDuplicateSlug) {
			code = http.StatusConflict
			errCode = "DUPLICATE_SLUG"
		}
		c.JSON(code, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    errCode,
				Message: "Failed to create product: " + err.Error(),
			},
		})
		return
	}

	if h.eventsPublisher != nil {
		_ = h.eventsPublisher.PublishProductCreated(c.Request.Context(), product, actorFromContext(c))
	}

	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// GetProducts retrieves products with filters and pagination
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	req := h.parseListRequest(c)
	h.listProducts(c, req)
}

// GetStorefrontProducts lists active products only
func (h *ProductsHandler) GetStorefrontProducts(c *gin.Context) {
	req := h.parseListRequest(c)
	active := models.ProductStatusActive
	req.Status = &active
	h.listProducts(c, req)
}

func (h *ProductsHandler) parseListRequest(c *gin.Context) *models.ListProductsRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.pageSizes.Default)))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > h.pageSizes.Max {
		limit = h.pageSizes.Default
	}

	req := &models.ListProductsRequest{
		Page:  page,
		Limit: limit,
	}
	if category := c.Query("category"); category != "" {
		req.Category = &category
	}
	if status := c.Query("status"); status != "" {
		s := models.ProductStatus(strings.ToLower(status))
		req.Status = &s
	}
	if featured := c.Query("featured"); featured != "" {
		f := featured == "true" || featured == "1"
		req.Featured = &f
	}
	return req
}

func (h *ProductsHandler) listProducts(c *gin.Context, req *models.ListProductsRequest) {
	products, total, err := h.repo.ListProducts(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list products")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve products",
			},
		})
		return
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success: true,
		Data:    products,
		Pagination: &models.PaginationInfo{
			Page:        req.Page,
			Limit:       req.Limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     req.Page < totalPages,
			HasPrevious: req.Page > 1,
		},
	})
}

// GetProduct retrieves a single product by ID
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		code := "FETCH_FAILED"
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
			code = "NOT_FOUND"
		}
		c.JSON(status, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    code,
				Message: "Product not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// GetStorefrontProduct retrieves an active product by slug
func (h *ProductsHandler) GetStorefrontProduct(c *gin.Context) {
	product, err := h.repo.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Product not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// DeleteProduct soft deletes a product
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Product not found",
			},
		})
		return
	}

	if err := h.repo.DeleteProduct(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete product: " + err.Error(),
			},
		})
		return
	}

	if h.eventsPublisher != nil {
		_ = h.eventsPublisher.PublishProductDeleted(c.Request.Context(), product, actorFromContext(c))
	}

	message := "Product deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// GetCategories lists all categories
func (h *ProductsHandler) GetCategories(c *gin.Context) {
	categories, err := h.repo.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve categories",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    categories,
	})
}

// CreateCategory creates a new category
func (h *ProductsHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	category := &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Image:       req.Image,
	}
	if err := h.repo.CreateCategory(c.Request.Context(), category); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create category: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    category,
	})
}

// GetSubcategories lists the subcategories of a category
func (h *ProductsHandler) GetSubcategories(c *gin.Context) {
	categoryID, ok := parseID(c, "id")
	if !ok {
		return
	}

	subcategories, err := h.repo.ListSubcategories(c.Request.Context(), categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve subcategories",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    subcategories,
	})
}

// CreateSubcategory creates a subcategory under an existing category
func (h *ProductsHandler) CreateSubcategory(c *gin.Context) {
	var req models.CreateSubcategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	subcategory := &models.Subcategory{
		CategoryID: req.CategoryID,
		Name:       strings.TrimSpace(req.Name),
	}
	if err := h.repo.CreateSubcategory(c.Request.Context(), subcategory); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Category does not exist",
					Field:   "categoryId",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create subcategory: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    subcategory,
	})
}

// GetBrands lists all brands
func (h *ProductsHandler) GetBrands(c *gin.Context) {
	brands, err := h.repo.ListBrands(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve brands",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    brands,
	})
}

// CreateBrand creates a new brand
func (h *ProductsHandler) CreateBrand(c *gin.Context) {
	var req models.CreateBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	brand := &models.Brand{
		Name: strings.TrimSpace(req.Name),
		Logo: req.Logo,
	}
	if err := h.repo.CreateBrand(c.Request.Context(), brand); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create brand: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    brand,
	})
}
