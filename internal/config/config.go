package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Required-field profiles for bulk import
var (
	StandardImportFields = []string{models.ColumnName, models.ColumnCategory}
	StrictImportFields   = []string{models.ColumnName, models.ColumnCategory, models.ColumnSlug, models.ColumnSKU}
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port        string
	Environment string
	CORSOrigins []string

	// Identifies this storefront in published events
	StoreID string

	// Pagination
	DefaultPageSize int
	MaxPageSize     int

	// Bulk import
	ImportBatchSize      int
	ImportInsertTimeout  time.Duration
	ImportMaxUploadBytes int64
	ImportUploadDir      string
	ImportRequiredFields []string
	ImportLockTTL        time.Duration
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))
	batchSize, err := strconv.Atoi(getEnv("IMPORT_BATCH_SIZE", "10"))
	if err != nil || batchSize <= 0 {
		batchSize = 10
	}
	maxUpload, err := strconv.ParseInt(getEnv("IMPORT_MAX_UPLOAD_BYTES", "20971520"), 10, 64)
	if err != nil || maxUpload <= 0 {
		maxUpload = 20 << 20
	}

	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		StoreID: getEnv("STORE_ID", "printhub"),

		// Pagination
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,

		// Bulk import
		ImportBatchSize:      batchSize,
		ImportInsertTimeout:  getDuration("IMPORT_INSERT_TIMEOUT", 15*time.Second),
		ImportMaxUploadBytes: maxUpload,
		ImportUploadDir:      getEnv("IMPORT_UPLOAD_DIR", "./uploads/imports"),
		ImportRequiredFields: ParseRequiredFields(getEnv("IMPORT_REQUIRED_FIELDS", "")),
		ImportLockTTL:        getDuration("IMPORT_LOCK_TTL", 30*time.Minute),
	}
}

// ParseRequiredFields reads a comma-separated column list. "strict" selects
// the legacy profile; an empty value selects the standard one.
func ParseRequiredFields(value string) []string {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "standard":
		return append([]string(nil), StandardImportFields...)
	case "strict":
		return append([]string(nil), StrictImportFields...)
	}

	var fields []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		key := models.NormalizeColumn(part)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		fields = append(fields, key)
	}
	if len(fields) == 0 {
		return append([]string(nil), StandardImportFields...)
	}
	return fields
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Category{},
		&models.Subcategory{},
		&models.Brand{},
		&models.Product{},
	); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("WARNING: invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
