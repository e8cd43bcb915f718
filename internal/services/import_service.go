package services

import (
	"context"
	"errors"
	"os"
	"time"

	"catalog-service/internal/models"
	"github.com/sirupsen/logrus"
)

// EventPublisher announces products stored by an import
type EventPublisher interface {
	PublishProductImported(ctx context.Context, product models.ImportSuccess, jobID string) error
}

// CacheInvalidator drops cached product listings after a write
type CacheInvalidator interface {
	InvalidateProductCaches(ctx context.Context)
}

// ImportOptions tunes the import pipeline
type ImportOptions struct {
	BatchSize      int
	InsertTimeout  time.Duration
	RequiredFields []string
}

// ImportService runs one import job end to end: ingest, validate, normalize,
// insert and report
type ImportService struct {
	ingestor   *FileIngestor
	validator  *SchemaValidator
	normalizer *RecordNormalizer
	engine     *InsertionEngine
	lock       ImportLock
	cache      CacheInvalidator
	publisher  EventPublisher
	logger     *logrus.Entry
	now        func() time.Time
}

// NewImportService wires the pipeline. cache and publisher may be nil; a nil
// lock means a process-local lock.
func NewImportService(store ProductStore, cache CacheInvalidator, lock ImportLock, publisher EventPublisher, opts ImportOptions, logger *logrus.Entry) *ImportService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if lock == nil {
		lock = NewLocalImportLock()
	}
	return &ImportService{
		ingestor:   NewFileIngestor(),
		validator:  NewSchemaValidator(opts.RequiredFields),
		normalizer: NewRecordNormalizer(),
		engine:     NewInsertionEngine(store, opts.BatchSize, opts.InsertTimeout, logger),
		lock:       lock,
		cache:      cache,
		publisher:  publisher,
		logger:     logger.WithField("component", "product-import"),
		now:        time.Now,
	}
}

// RequiredFields returns the column keys the validator enforces
func (s *ImportService) RequiredFields() []string {
	return s.validator.RequiredFields()
}

// Run executes one job against the file at path. It fails with
// *UnsupportedFormatError, *IngestError, *ValidationFailedError or
// ErrImportInProgress before any insert is attempted; once inserts start the
// job always yields a report. Cancelling ctx does not stop a started job.
func (s *ImportService) Run(ctx context.Context, jobID, path, ext string) (*models.ImportReport, error) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.WithFields(logrus.Fields{"jobId": jobID, "extension": ext})

	release, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	rows, err := s.ingestor.Ingest(ctx, path, ext)
	if err != nil {
		log.WithError(err).Warn("Import file rejected")
		return nil, err
	}
	log.WithField("rows", len(rows)).Info("Import file parsed")

	validation := s.validator.Validate(rows)
	if !validation.IsValid {
		log.WithField("errors", len(validation.Errors)).Info("Import validation failed")
		return nil, &ValidationFailedError{Errors: validation.Errors}
	}

	records := make([]*models.CanonicalProduct, 0, len(rows))
	for _, row := range rows {
		records = append(records, s.normalizer.Normalize(row))
	}

	outcomes := s.engine.InsertAll(ctx, records)
	report := Summarize(outcomes, len(rows), s.now())

	if report.SuccessCount > 0 {
		if s.cache != nil {
			s.cache.InvalidateProductCaches(ctx)
		}
		if s.publisher != nil {
			for _, success := range report.Successes {
				if err := s.publisher.PublishProductImported(ctx, success, jobID); err != nil {
					log.WithError(err).WithField("productId", success.ID).Warn("Failed to publish import event")
				}
			}
		}
	}

	log.WithFields(logrus.Fields{
		"total":       report.TotalRows,
		"successful":  report.SuccessCount,
		"failed":      len(report.Failures),
		"successRate": report.SuccessRatePercent,
		"durationMs":  time.Since(started).Milliseconds(),
	}).Info("Import completed")

	return report, nil
}

// RemoveUpload deletes a processed upload. Failures are logged only.
func RemoveUpload(logger *logrus.Entry, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).WithField("path", path).Warn("Failed to delete uploaded import file")
	}
}
