package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewise/platform/pkg/common/models"
	"gorm.io/gorm"
)

const defaultListLimit = 50

// Repository stores upload metadata.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&UploadModel{})
}

func (r *Repository) CreateUpload(ctx context.Context, u *models.UploadMetadata) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now().UTC()
	}
	row := UploadModel{
		ID:          u.ID,
		OwnerID:     u.OwnerID,
		FileName:    u.FileName,
		RangeStart:  u.RangeStart,
		RangeEnd:    u.RangeEnd,
		RecordCount: u.RecordCount,
		UploadedAt:  u.UploadedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListUploads returns the owner's uploads newest first.
func (r *Repository) ListUploads(ctx context.Context, ownerID string, limit int) ([]models.UploadMetadata, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []UploadModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.UploadMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.UploadMetadata{
			ID:          row.ID,
			OwnerID:     row.OwnerID,
			FileName:    row.FileName,
			RangeStart:  row.RangeStart,
			RangeEnd:    row.RangeEnd,
			RecordCount: row.RecordCount,
			UploadedAt:  row.UploadedAt,
		})
	}
	return out, nil
}

// DeleteUploadsBefore removes metadata older than cutoff.
func (r *Repository) DeleteUploadsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("uploaded_at < ?", cutoff).Delete(&UploadModel{})
	return result.RowsAffected, result.Error
}
