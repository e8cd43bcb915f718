package services

import (
	"math"
	"time"

	"catalog-service/internal/models"
)

// Summarize aggregates insertion outcomes into the job report. Failures keep
// the order of the outcomes.
func Summarize(outcomes []models.InsertionOutcome, totalRows int, processedAt time.Time) *models.ImportReport {
	report := &models.ImportReport{
		Successes:   make([]models.ImportSuccess, 0),
		Failures:    make([]models.ImportFailure, 0),
		TotalRows:   totalRows,
		ProcessedAt: processedAt,
	}

	for _, outcome := range outcomes {
		switch {
		case outcome.Success != nil:
			report.SuccessCount++
			report.Successes = append(report.Successes, *outcome.Success)
		case outcome.Failure != nil:
			report.Failures = append(report.Failures, *outcome.Failure)
		}
	}

	if totalRows > 0 {
		report.SuccessRatePercent = int(math.Round(float64(report.SuccessCount) / float64(totalRows) * 100))
	}
	return report
}
