package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
)

// RecordReader is the full-scan read the aggregator needs.
type RecordReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.HeartRateRecord, error)
}

// SummaryStore holds the single derived summary per owner.
type SummaryStore interface {
	ReplaceSummary(ctx context.Context, summary models.AnalyticsSummary) error
	GetSummary(ctx context.Context, ownerID string) (*models.AnalyticsSummary, error)
}

// Compute derives the summary from the full set of an owner's records.
func Compute(ownerID string, records []models.HeartRateRecord, now time.Time) models.AnalyticsSummary {
	summary := models.AnalyticsSummary{
		OwnerID:      ownerID,
		TotalRecords: len(records),
		ComputedAt:   now.UTC(),
	}
	if len(records) == 0 {
		return summary
	}

	var midpoints float64
	summary.MinHR = records[0].HRMin
	summary.MaxHR = records[0].HRMax
	for _, rec := range records {
		midpoints += float64(rec.HRMin+rec.HRMax) / 2
		if rec.HRMin < summary.MinHR {
			summary.MinHR = rec.HRMin
		}
		if rec.HRMax > summary.MaxHR {
			summary.MaxHR = rec.HRMax
		}
		if rec.Tag == models.TagExercising {
			summary.ExerciseSessions++
		}
	}
	summary.AvgHR = midpoints / float64(len(records))
	return summary
}

// Aggregator recomputes an owner's summary from scratch.
type Aggregator struct {
	records   RecordReader
	summaries SummaryStore
	now       func() time.Time
}

func NewAggregator(records RecordReader, summaries SummaryStore) *Aggregator {
	return &Aggregator{records: records, summaries: summaries, now: time.Now}
}

// Recompute scans every record of the owner and replaces the stored summary.
// The previous summary stays visible until the replacement is written.
func (a *Aggregator) Recompute(ctx context.Context, ownerID string) (models.AnalyticsSummary, error) {
	records, err := a.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return models.AnalyticsSummary{}, fmt.Errorf("loading records: %w", err)
	}

	summary := Compute(ownerID, records, a.now())
	if err := a.summaries.ReplaceSummary(ctx, summary); err != nil {
		return models.AnalyticsSummary{}, fmt.Errorf("replacing summary: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"owner_id":      ownerID,
		"total_records": summary.TotalRecords,
		"avg_hr":        summary.AvgHR,
	}).Debug("analytics recomputed")
	return summary, nil
}

// Summary returns the stored summary, or models.ErrNotFound.
func (a *Aggregator) Summary(ctx context.Context, ownerID string) (*models.AnalyticsSummary, error) {
	return a.summaries.GetSummary(ctx, ownerID)
}
