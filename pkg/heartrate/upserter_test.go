package heartrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/pulsewise/platform/pkg/storage"
)

func record(day, hour, minute, hrMin, hrMax int, tag models.Tag) models.HeartRateRecord {
	return models.HeartRateRecord{
		Date:  time.Date(2026, time.October, day, 0, 0, 0, 0, time.UTC),
		Time:  &models.ClockTime{Hour: hour, Minute: minute},
		HRMin: hrMin,
		HRMax: hrMax,
		Tag:   tag,
	}
}

// flakyStore fails every upsert whose HRMin is in failOn.
type flakyStore struct {
	*storage.MemoryStore
	mu     sync.Mutex
	failOn map[int]bool
	calls  int
}

func (s *flakyStore) Upsert(ctx context.Context, rec models.HeartRateRecord) error {
	s.mu.Lock()
	s.calls++
	fail := s.failOn[rec.HRMin]
	s.mu.Unlock()
	if fail {
		return errors.New("write timeout")
	}
	return s.MemoryStore.Upsert(ctx, rec)
}

func TestApplyForcesOwnerAndSource(t *testing.T) {
	store := storage.NewMemoryStore()
	up := NewUpserter(store, 2, nil)

	batch := []models.HeartRateRecord{record(3, 9, 2, 72, 72, models.TagNormal)}
	batch[0].OwnerID = "someone-else"

	report, err := up.Apply(context.Background(), "owner-1", batch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	got, err := store.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SourceImport, got[0].Source)

	other, err := store.ListByOwner(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestApplyIsIdempotentAndLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	up := NewUpserter(store, 4, nil)

	batch := []models.HeartRateRecord{
		record(3, 9, 2, 72, 80, models.TagNormal),
		record(3, 18, 0, 110, 150, models.TagExercising),
	}
	_, err := up.Apply(ctx, "owner-1", batch)
	require.NoError(t, err)
	_, err = up.Apply(ctx, "owner-1", batch)
	require.NoError(t, err)

	got, err := store.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	corrected := record(3, 9, 2, 65, 70, models.TagExercising)
	_, err = up.Apply(ctx, "owner-1", []models.HeartRateRecord{corrected})
	require.NoError(t, err)

	got, err = store.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 65, got[0].HRMin)
	assert.Equal(t, models.TagExercising, got[0].Tag)
}

func TestApplyContinuesPastBadEntries(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failOn: map[int]bool{61: true}}
	up := NewUpserter(store, 3, nil)

	batch := []models.HeartRateRecord{
		record(3, 9, 0, 60, 60, models.TagNormal),
		record(3, 10, 0, 61, 61, models.TagNormal),
		record(3, 11, 0, 95, 90, models.TagNormal),
		record(3, 12, 0, 62, 62, models.TagNormal),
	}

	report, err := up.Apply(context.Background(), "owner-1", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.StoreFailures)
	assert.Equal(t, 3, store.calls)
}

func TestApplyFailsWhenNothingStored(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failOn: map[int]bool{60: true, 61: true}}
	up := NewUpserter(store, 2, nil)

	report, err := up.Apply(context.Background(), "owner-1", []models.HeartRateRecord{
		record(3, 9, 0, 60, 60, models.TagNormal),
		record(3, 10, 0, 61, 61, models.TagNormal),
	})

	assert.ErrorIs(t, err, ErrNothingApplied)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 2, report.StoreFailures)
}

func TestApplyFiltersNotes(t *testing.T) {
	store := storage.NewMemoryStore()
	up := NewUpserter(store, 1, strings.ToUpper)

	rec := record(3, 9, 0, 60, 60, models.TagNormal)
	note := "call 555-123-4567"
	rec.Notes = &note

	_, err := up.Apply(context.Background(), "owner-1", []models.HeartRateRecord{rec})
	require.NoError(t, err)

	got, err := store.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.NotNil(t, got[0].Notes)
	assert.Equal(t, "CALL 555-123-4567", *got[0].Notes)
	assert.Equal(t, "call 555-123-4567", note)
}

func TestParseStoredClock(t *testing.T) {
	c, err := ParseStoredClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, models.ClockTime{Hour: 9, Minute: 5}, c)

	_, err = ParseStoredClock("25:00")
	assert.Error(t, err)
	_, err = ParseStoredClock("")
	assert.Error(t, err)
}
