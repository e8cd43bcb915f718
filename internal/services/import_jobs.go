package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalog-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	importQueueKey   = "catalog:import:queue"
	importJobKeyFmt  = "catalog:import:job:%s"
	importJobTTL     = 24 * time.Hour
	importRetryDelay = 2 * time.Second
)

// ErrJobNotFound is returned for unknown or expired job ids
var ErrJobNotFound = errors.New("import job not found")

// ImportJobStore keeps async job state in Redis and queues job ids
type ImportJobStore struct {
	redis *redis.Client
}

func NewImportJobStore(client *redis.Client) *ImportJobStore {
	return &ImportJobStore{redis: client}
}

func jobKey(id string) string {
	return fmt.Sprintf(importJobKeyFmt, id)
}

// Enqueue records a pending job for a persisted upload and queues it
func (s *ImportJobStore) Enqueue(ctx context.Context, fileName, filePath, ext string) (*models.ImportJob, error) {
	job := &models.ImportJob{
		ID:        uuid.New().String(),
		Status:    models.ImportJobStatusPending,
		FileName:  fileName,
		FilePath:  filePath,
		Extension: ext,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := s.redis.RPush(ctx, importQueueKey, job.ID).Err(); err != nil {
		s.redis.Del(ctx, jobKey(job.ID))
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// storedJob carries the fields hidden from API responses
type storedJob struct {
	*models.ImportJob
	FilePath  string `json:"filePath"`
	Extension string `json:"extension"`
}

// Save writes job state with a 24h expiry
func (s *ImportJobStore) Save(ctx context.Context, job *models.ImportJob) error {
	data, err := json.Marshal(storedJob{ImportJob: job, FilePath: job.FilePath, Extension: job.Extension})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKey(job.ID), data, importJobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

// Get loads a job by id
func (s *ImportJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	val, err := s.redis.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	stored := storedJob{ImportJob: &models.ImportJob{}}
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	stored.ImportJob.FilePath = stored.FilePath
	stored.ImportJob.Extension = stored.Extension
	return stored.ImportJob, nil
}

// next blocks up to wait for a queued job id
func (s *ImportJobStore) next(ctx context.Context, wait time.Duration) (string, error) {
	res, err := s.redis.BLPop(ctx, wait, importQueueKey).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", redis.Nil
	}
	return res[1], nil
}

func (s *ImportJobStore) requeue(ctx context.Context, id string) error {
	return s.redis.RPush(ctx, importQueueKey, id).Err()
}

// ImportWorker consumes queued jobs one at a time
type ImportWorker struct {
	jobs       *ImportJobStore
	service    *ImportService
	logger     *logrus.Entry
	retryDelay time.Duration
}

func NewImportWorker(jobs *ImportJobStore, service *ImportService, logger *logrus.Entry) *ImportWorker {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImportWorker{
		jobs:       jobs,
		service:    service,
		logger:     logger.WithField("component", "import-worker"),
		retryDelay: importRetryDelay,
	}
}

// Start consumes the queue until ctx is cancelled
func (w *ImportWorker) Start(ctx context.Context) {
	w.logger.WithField("queue", importQueueKey).Info("Import worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Import worker stopping")
			return
		default:
		}

		jobID, err := w.jobs.next(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.WithError(err).Error("Failed to read import queue")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		w.process(ctx, jobID)
	}
}

// process runs one job and records its final state
func (w *ImportWorker) process(ctx context.Context, jobID string) {
	log := w.logger.WithField("jobId", jobID)

	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		log.WithError(err).Error("Failed to load import job")
		return
	}

	started := time.Now().UTC()
	job.Status = models.ImportJobStatusProcessing
	job.StartedAt = &started
	if err := w.jobs.Save(ctx, job); err != nil {
		log.WithError(err).Warn("Failed to mark import job as processing")
	}

	report, err := w.service.Run(ctx, job.ID, job.FilePath, job.Extension)
	if errors.Is(err, ErrImportInProgress) {
		// Another job holds the lock; put this one back
		job.Status = models.ImportJobStatusPending
		job.StartedAt = nil
		_ = w.jobs.Save(ctx, job)
		if err := w.jobs.requeue(ctx, job.ID); err != nil {
			log.WithError(err).Error("Failed to requeue import job")
		}
		time.Sleep(w.retryDelay)
		return
	}

	RemoveUpload(log, job.FilePath)
	ApplyJobResult(job, report, err)
	if err := w.jobs.Save(context.WithoutCancel(ctx), job); err != nil {
		log.WithError(err).Error("Failed to store import job result")
	}
}

// ApplyJobResult moves a job to its terminal state
func ApplyJobResult(job *models.ImportJob, report *models.ImportReport, err error) {
	completed := time.Now().UTC()
	job.CompletedAt = &completed

	if err != nil {
		job.Status = models.ImportJobStatusFailed
		job.Error = err.Error()
		var validationErr *ValidationFailedError
		if errors.As(err, &validationErr) {
			job.Error = "Validation failed"
			job.Errors = validationErr.Errors
		}
		return
	}

	response := models.NewImportResponse(report)
	job.Status = models.ImportJobStatusCompleted
	job.Result = &response
}
