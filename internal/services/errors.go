package services

import (
	"errors"
	"fmt"

	"catalog-service/internal/models"
)

var (
	// ErrImportInProgress is returned when another import job holds the lock
	ErrImportInProgress = errors.New("another import is already in progress")
	// ErrInsertTimeout is recorded when a single insert outlives its deadline
	ErrInsertTimeout = errors.New("insert timed out")
)

// UnsupportedFormatError rejects a file whose extension has no reader
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Unsupported file format: %s. Please upload a CSV or Excel file", e.Extension)
}

// IngestError wraps a read or parse failure of the uploaded file
type IngestError struct {
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("failed to read import file: %v", e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// ValidationFailedError aborts a job whose rows broke at least one rule
type ValidationFailedError struct {
	Errors []models.ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s)", len(e.Errors))
}
