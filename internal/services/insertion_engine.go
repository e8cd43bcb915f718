package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize     = 10
	DefaultInsertTimeout = 15 * time.Second
)

// ProductStore is the storage capability the import pipeline needs
type ProductStore interface {
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	// InsertProduct must stop and roll back once ctx is done. The engine
	// reports a timed-out row as failed, so a write that lands afterwards
	// would be stored yet reported as a failure.
	InsertProduct(ctx context.Context, record *models.CanonicalProduct) (uint, error)
}

var _ ProductStore = (*repository.ProductsRepository)(nil)

// InsertionEngine stores canonical records one at a time, in input order,
// and reports one outcome per record. A failing record never stops the run.
type InsertionEngine struct {
	store         ProductStore
	batchSize     int
	insertTimeout time.Duration
	logger        *logrus.Entry

	randIntn func(n int) int
	now      func() time.Time
}

// NewInsertionEngine creates an engine. Non-positive settings fall back to
// the defaults.
func NewInsertionEngine(store ProductStore, batchSize int, insertTimeout time.Duration, logger *logrus.Entry) *InsertionEngine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if insertTimeout <= 0 {
		insertTimeout = DefaultInsertTimeout
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &InsertionEngine{
		store:         store,
		batchSize:     batchSize,
		insertTimeout: insertTimeout,
		logger:        logger.WithField("component", "insertion-engine"),
		randIntn:      rand.IntN,
		now:           time.Now,
	}
}

// InsertAll processes records batch by batch. Batches only bound progress
// reporting; every record commits on its own.
func (e *InsertionEngine) InsertAll(ctx context.Context, records []*models.CanonicalProduct) []models.InsertionOutcome {
	outcomes := make([]models.InsertionOutcome, 0, len(records))
	totalBatches := (len(records) + e.batchSize - 1) / e.batchSize
	succeeded, failed := 0, 0

	for start := 0; start < len(records); start += e.batchSize {
		end := start + e.batchSize
		if end > len(records) {
			end = len(records)
		}

		for _, record := range records[start:end] {
			outcome := e.insertOne(ctx, record)
			if outcome.Success != nil {
				succeeded++
			} else {
				failed++
			}
			outcomes = append(outcomes, outcome)
		}

		e.logger.WithFields(logrus.Fields{
			"batch":     start/e.batchSize + 1,
			"batches":   totalBatches,
			"processed": end,
			"total":     len(records),
			"succeeded": succeeded,
			"failed":    failed,
		}).Info("Import batch processed")
	}

	return outcomes
}

func (e *InsertionEngine) insertOne(ctx context.Context, record *models.CanonicalProduct) models.InsertionOutcome {
	candidate := *record

	if candidate.Slug != nil {
		existing, err := e.findBySlug(ctx, *candidate.Slug)
		if err != nil {
			// The insert still runs; the unique index catches a collision
			e.logger.WithError(err).WithField("slug", *candidate.Slug).Warn("Slug lookup failed")
		} else if existing != nil {
			slug := fmt.Sprintf("%s-%d", *record.Slug, e.randomSuffix())
			candidate.Slug = &slug
		}
	}

	id, err := e.insertWithDeadline(ctx, &candidate)
	if errors.Is(err, repository.ErrDuplicateSlug) && record.Slug != nil {
		slug := fmt.Sprintf("%s-%d-%d", *record.Slug, e.now().UnixMilli(), e.randomSuffix())
		e.logger.WithFields(logrus.Fields{
			"row":  record.RowNumber,
			"slug": slug,
		}).Info("Slug taken at insert, retrying once")
		candidate.Slug = &slug
		id, err = e.insertWithDeadline(ctx, &candidate)
	}

	if err != nil {
		failure := &models.ImportFailure{
			RowNumber:   record.RowNumber,
			ProductName: productLabel(record),
			Code:        failureCode(err),
			Error:       failureMessage(err, e.insertTimeout),
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"row":  failure.RowNumber,
			"code": failure.Code,
		}).Warn("Import row failed")
		return models.InsertionOutcome{Failure: failure}
	}

	return models.InsertionOutcome{Success: &models.ImportSuccess{
		RowNumber: record.RowNumber,
		Name:      record.Name,
		ID:        id,
		Slug:      candidate.Slug,
		Category:  record.Category,
		SKU:       record.SKU,
		Status:    string(record.Status),
	}}
}

// findBySlug bounds the pre-insert lookup by the per-insert deadline
func (e *InsertionEngine) findBySlug(ctx context.Context, slug string) (*models.Product, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, e.insertTimeout)
	defer cancel()
	return e.store.FindBySlug(lookupCtx, slug)
}

type insertResult struct {
	id  uint
	err error
}

// insertWithDeadline waits for the store until the per-insert deadline. The
// store call gets the same deadline and is abandoned once it passes.
func (e *InsertionEngine) insertWithDeadline(ctx context.Context, record *models.CanonicalProduct) (uint, error) {
	insertCtx, cancel := context.WithTimeout(ctx, e.insertTimeout)
	defer cancel()

	done := make(chan insertResult, 1)
	go func() {
		id, err := e.store.InsertProduct(insertCtx, record)
		done <- insertResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return 0, ErrInsertTimeout
		}
		return res.id, res.err
	case <-insertCtx.Done():
		if errors.Is(insertCtx.Err(), context.DeadlineExceeded) {
			return 0, ErrInsertTimeout
		}
		return 0, insertCtx.Err()
	}
}

// randomSuffix returns a four digit number
func (e *InsertionEngine) randomSuffix() int {
	return 1000 + e.randIntn(9000)
}

func productLabel(record *models.CanonicalProduct) string {
	if record.Name != "" {
		return record.Name
	}
	return models.RowLabel(record.RowNumber)
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, ErrInsertTimeout):
		return models.FailureCodeTimeout
	case errors.Is(err, repository.ErrDuplicateSlug):
		return models.FailureCodeDuplicateSlug
	default:
		return models.FailureCodeStoreError
	}
}

func failureMessage(err error, timeout time.Duration) string {
	if errors.Is(err, ErrInsertTimeout) {
		return fmt.Sprintf("Insert timed out after %s", timeout)
	}
	return err.Error()
}
