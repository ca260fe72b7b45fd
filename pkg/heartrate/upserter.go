package heartrate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNothingApplied is returned when every entry of a batch failed in storage.
var ErrNothingApplied = errors.New("no records applied")

// Store is the record persistence used by the upserter and the readers.
type Store interface {
	Upsert(ctx context.Context, rec models.HeartRateRecord) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.HeartRateRecord, error)
	ListRange(ctx context.Context, ownerID string, from, to time.Time) ([]models.HeartRateRecord, error)
}

// NoteFilter rewrites free-text notes before they are stored.
type NoteFilter func(string) string

type Report struct {
	Applied int
	Skipped int
	// StoreFailures counts skipped entries that failed in storage rather than
	// in validation.
	StoreFailures int
}

// Upserter merges a parsed batch into storage keyed on (owner, date, time).
type Upserter struct {
	store   Store
	workers int
	notes   NoteFilter
}

func NewUpserter(store Store, workers int, notes NoteFilter) *Upserter {
	if workers <= 0 {
		workers = 1
	}
	return &Upserter{store: store, workers: workers, notes: notes}
}

// Apply writes every entry of batch for ownerID. Entries are independent, so
// a rejected or failed entry is counted and skipped without aborting the
// rest. Apply returns only after every write has settled.
func (u *Upserter) Apply(ctx context.Context, ownerID string, batch []models.HeartRateRecord) (Report, error) {
	var applied, invalid, failed atomic.Int64
	var lastErr atomic.Value

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for i := range batch {
		rec := batch[i]
		rec.OwnerID = ownerID
		if rec.Source == "" {
			rec.Source = models.SourceImport
		}
		if rec.Notes != nil && u.notes != nil {
			filtered := u.notes(*rec.Notes)
			rec.Notes = &filtered
		}

		g.Go(func() error {
			entry := logger.WithFields(logrus.Fields{
				"owner_id": ownerID,
				"date":     rec.Date.Format(models.DateLayout),
			})
			if err := rec.Validate(); err != nil {
				invalid.Add(1)
				entry.WithError(err).Debug("skipping invalid heart-rate record")
				return nil
			}
			if err := u.store.Upsert(gctx, rec); err != nil {
				failed.Add(1)
				lastErr.Store(err)
				entry.WithError(err).Warn("failed to upsert heart-rate record")
				return nil
			}
			applied.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Applied:       int(applied.Load()),
		Skipped:       int(invalid.Load() + failed.Load()),
		StoreFailures: int(failed.Load()),
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Applied == 0 && report.StoreFailures > 0 {
		cause, _ := lastErr.Load().(error)
		return report, fmt.Errorf("%w: %v", ErrNothingApplied, cause)
	}
	return report, nil
}
