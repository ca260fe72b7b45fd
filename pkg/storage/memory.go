// Package storage holds the in-memory store used for local development and
// the Redis summary cache.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewise/platform/pkg/common/models"
)

const defaultListLimit = 50

// MemoryStore keeps records, summaries, predictions and uploads in process
// memory. It satisfies the same interfaces as the Postgres repositories.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[models.RecordKey]models.HeartRateRecord
	summaries   map[string]models.AnalyticsSummary
	predictions map[string][]models.PredictionRecord
	uploads     map[string][]models.UploadMetadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[models.RecordKey]models.HeartRateRecord),
		summaries:   make(map[string]models.AnalyticsSummary),
		predictions: make(map[string][]models.PredictionRecord),
		uploads:     make(map[string][]models.UploadMetadata),
	}
}

// Upsert overwrites the measurement fields of an existing key or inserts.
func (s *MemoryStore) Upsert(ctx context.Context, rec models.HeartRateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	if existing, ok := s.records[key]; ok {
		existing.HRMin = rec.HRMin
		existing.HRMax = rec.HRMax
		existing.Tag = rec.Tag
		existing.Notes = copyNotes(rec.Notes)
		s.records[key] = existing
		return nil
	}
	rec.Notes = copyNotes(rec.Notes)
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]models.HeartRateRecord, error) {
	return s.list(ctx, ownerID, func(models.HeartRateRecord) bool { return true })
}

// ListRange returns records with from <= date <= to.
func (s *MemoryStore) ListRange(ctx context.Context, ownerID string, from, to time.Time) ([]models.HeartRateRecord, error) {
	return s.list(ctx, ownerID, func(rec models.HeartRateRecord) bool {
		return !rec.Date.Before(from) && !rec.Date.After(to)
	})
}

func (s *MemoryStore) list(ctx context.Context, ownerID string, keep func(models.HeartRateRecord) bool) ([]models.HeartRateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.HeartRateRecord, 0)
	for key, rec := range s.records {
		if key.OwnerID == ownerID && keep(rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Date != kj.Date {
			return ki.Date < kj.Date
		}
		return ki.Time < kj.Time
	})
	return out, nil
}

func (s *MemoryStore) ReplaceSummary(ctx context.Context, summary models.AnalyticsSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.OwnerID] = summary
	return nil
}

func (s *MemoryStore) GetSummary(ctx context.Context, ownerID string) (*models.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[ownerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &summary, nil
}

func (s *MemoryStore) AppendPrediction(ctx context.Context, p *models.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[p.OwnerID] = append(s.predictions[p.OwnerID], *p)
	return nil
}

func (s *MemoryStore) LatestPrediction(ctx context.Context, ownerID string) (*models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.predictions[ownerID]
	if len(history) == 0 {
		return nil, models.ErrNotFound
	}
	latest := history[len(history)-1]
	return &latest, nil
}

// RecentPredictions returns newest first.
func (s *MemoryStore) RecentPredictions(ctx context.Context, ownerID string, limit int) ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.predictions[ownerID]
	limit = clampLimit(limit, len(history))
	out := make([]models.PredictionRecord, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (s *MemoryStore) CreateUpload(ctx context.Context, u *models.UploadMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[u.OwnerID] = append(s.uploads[u.OwnerID], *u)
	return nil
}

// ListUploads returns newest first.
func (s *MemoryStore) ListUploads(ctx context.Context, ownerID string, limit int) ([]models.UploadMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.uploads[ownerID]
	limit = clampLimit(limit, len(history))
	out := make([]models.UploadMetadata, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (s *MemoryStore) DeleteUploadsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for owner, history := range s.uploads {
		kept := history[:0]
		for _, u := range history {
			if u.UploadedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, u)
		}
		s.uploads[owner] = kept
	}
	return removed, nil
}

func clampLimit(limit, size int) int {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > size {
		return size
	}
	return limit
}

func copyNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	n := *notes
	return &n
}
