package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Catalog API
// @version 1.0.0
// @description Product catalog service with bulk CSV/Excel import
// @termsOfService http://swagger.io/terms/

// @contact.name Catalog API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8087
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	redisReady := true
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisReady = false
		log.Printf("WARNING: Failed to connect to Redis: %v (caching, import jobs and the shared import lock are disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	pingCancel()

	productsRepo := repository.NewProductsRepository(db, redisClient)

	// Event publishing only when NATS_URL is set
	var eventsPublisher *events.Publisher
	if os.Getenv("NATS_URL") != "" {
		eventsPublisher, err = events.NewPublisher(cfg.StoreID, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
			eventsPublisher = nil
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Bulk import pipeline
	var importLock services.ImportLock
	var importJobs *services.ImportJobStore
	if redisReady {
		importLock = services.NewRedisImportLock(redisClient, cfg.ImportLockTTL, logrus.NewEntry(logger))
		importJobs = services.NewImportJobStore(redisClient)
	}
	var importPublisher services.EventPublisher
	if eventsPublisher != nil {
		importPublisher = eventsPublisher
	}
	importService := services.NewImportService(productsRepo, productsRepo, importLock, importPublisher, services.ImportOptions{
		BatchSize:      cfg.ImportBatchSize,
		InsertTimeout:  cfg.ImportInsertTimeout,
		RequiredFields: cfg.ImportRequiredFields,
	}, logrus.NewEntry(logger))
	log.Printf("✓ Import service initialized (required fields: %v)", importService.RequiredFields())

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if importJobs != nil {
		worker := services.NewImportWorker(importJobs, importService, logrus.NewEntry(logger))
		go worker.Start(workerCtx)
		log.Println("✓ Import worker started")
	}

	productsHandler := handlers.NewProductsHandler(productsRepo, eventsPublisher, handlers.PageSizes{
		Default: cfg.DefaultPageSize,
		Max:     cfg.MaxPageSize,
	}, logrus.NewEntry(logger))
	importHandler := handlers.NewImportHandler(importService, importJobs, productsRepo, handlers.ImportHandlerConfig{
		UploadDir:      cfg.ImportUploadDir,
		MaxUploadBytes: cfg.ImportMaxUploadBytes,
	}, logrus.NewEntry(logger))

	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalog-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalog-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	metrics := gosharedmw.InitGlobalMetrics("printhub", "catalog_service")
	log.Println("✓ Prometheus metrics initialized")

	staffServiceURL := os.Getenv("STAFF_SERVICE_URL")
	if staffServiceURL == "" {
		staffServiceURL = "http://staff-service:8080"
	}
	rbacMw := rbac.NewMiddlewareWithURL(staffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalog-service"))
	router.Use(gosharedmw.CompressionMiddleware())

	router.Use(middleware.CORS(cfg.CORSOrigins))

	// No auth
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")

	// Development runs without the mesh; everywhere else IstioAuth reads the
	// x-jwt-claim-* headers
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: true,
			Logger:             logrus.NewEntry(logger).WithField("component", "istio_auth"),
		}))
	}

	v1 := api.Group("")
	{
		products := v1.Group("/products")
		{
			products.GET("", rbacMw.RequirePermission(rbac.PermissionProductsRead), productsHandler.GetProducts)
			products.GET("/:id", rbacMw.RequirePermission(rbac.PermissionProductsRead), productsHandler.GetProduct)
			products.POST("", rbacMw.RequirePermission(rbac.PermissionProductsCreate), productsHandler.CreateProduct)
			products.DELETE("/:id", rbacMw.RequirePermission(rbac.PermissionProductsDelete), productsHandler.DeleteProduct)

			// Bulk import and export
			products.GET("/import/template", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.GetImportTemplate)
			products.POST("/import", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.ImportProducts)
			products.GET("/import/jobs/:id", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.GetImportJob)
			products.GET("/export", rbacMw.RequirePermission(rbac.PermissionProductsExport), importHandler.ExportProducts)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), productsHandler.GetCategories)
			categories.POST("", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), productsHandler.CreateCategory)
			categories.GET("/:id/subcategories", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), productsHandler.GetSubcategories)
		}

		v1.POST("/subcategories", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), productsHandler.CreateSubcategory)

		brands := v1.Group("/brands")
		{
			brands.GET("", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), productsHandler.GetBrands)
			brands.POST("", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), productsHandler.CreateBrand)
		}
	}

	// Public storefront browsing, active products only
	storefront := router.Group("/api/v1/storefront")
	{
		storefront.GET("/products", productsHandler.GetStorefrontProducts)
		storefront.GET("/products/:slug", productsHandler.GetStorefrontProduct)
		storefront.GET("/categories", productsHandler.GetCategories)
		storefront.GET("/categories/:id/subcategories", productsHandler.GetSubcategories)
		storefront.GET("/brands", productsHandler.GetBrands)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// In-flight imports finish before the process exits
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	stopWorker()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Catalog service stopped")
}
