package services

import (
	"testing"
	"time"

	"catalog-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	processedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []models.InsertionOutcome{
		{Success: &models.ImportSuccess{RowNumber: 2, Name: "A", ID: 1}},
		{Failure: &models.ImportFailure{RowNumber: 3, ProductName: "B", Code: models.FailureCodeStoreError, Error: "boom"}},
		{Success: &models.ImportSuccess{RowNumber: 4, Name: "C", ID: 2}},
		{Failure: &models.ImportFailure{RowNumber: 5, ProductName: "D", Code: models.FailureCodeTimeout, Error: "slow"}},
		{Success: &models.ImportSuccess{RowNumber: 6, Name: "E", ID: 3}},
		{Success: &models.ImportSuccess{RowNumber: 7, Name: "F", ID: 4}},
	}

	report := Summarize(outcomes, 6, processedAt)

	assert.Equal(t, 4, report.SuccessCount)
	assert.Equal(t, 6, report.TotalRows)
	assert.Equal(t, 67, report.SuccessRatePercent)
	assert.Equal(t, processedAt, report.ProcessedAt)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 3, report.Failures[0].RowNumber)
	assert.Equal(t, 5, report.Failures[1].RowNumber)
	assert.Equal(t, report.SuccessCount+len(report.Failures), report.TotalRows)
}

func TestSummarizeNoRows(t *testing.T) {
	report := Summarize(nil, 0, time.Now())

	assert.Zero(t, report.SuccessCount)
	assert.Zero(t, report.SuccessRatePercent)
	assert.NotNil(t, report.Failures)
	assert.Empty(t, report.Failures)
}

func TestNewImportResponse(t *testing.T) {
	processedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	full := models.NewImportResponse(Summarize([]models.InsertionOutcome{
		{Success: &models.ImportSuccess{RowNumber: 2, ID: 1}},
	}, 1, processedAt))
	assert.Equal(t, "Import completed successfully", full.Message)
	assert.Equal(t, 1, full.Successful)
	assert.Equal(t, 1, full.Total)
	assert.NotNil(t, full.Failed)
	assert.Equal(t, "100%", full.Summary.SuccessRate)
	assert.Equal(t, "2026-03-01T12:00:00Z", full.Summary.ProcessedAt)

	partial := models.NewImportResponse(Summarize([]models.InsertionOutcome{
		{Success: &models.ImportSuccess{RowNumber: 2, ID: 1}},
		{Failure: &models.ImportFailure{RowNumber: 3}},
		{Failure: &models.ImportFailure{RowNumber: 4}},
	}, 3, processedAt))
	assert.Equal(t, "Import completed with errors", partial.Message)
	assert.Equal(t, "33%", partial.Summary.SuccessRate)
	assert.Len(t, partial.Failed, 2)
}
