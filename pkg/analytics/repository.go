package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/pulsewise/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SummaryModel struct {
	OwnerID          string    `gorm:"primaryKey;column:owner_id"`
	AvgHR            float64   `gorm:"column:avg_hr"`
	MinHR            int       `gorm:"column:min_hr"`
	MaxHR            int       `gorm:"column:max_hr"`
	ExerciseSessions int       `gorm:"column:exercise_sessions"`
	TotalRecords     int       `gorm:"column:total_records"`
	ComputedAt       time.Time `gorm:"column:computed_at"`
}

func (SummaryModel) TableName() string {
	return "heart_rate_summaries"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&SummaryModel{})
}

// ReplaceSummary overwrites the owner's row in a single statement, so readers
// see either the old summary or the new one.
func (r *Repository) ReplaceSummary(ctx context.Context, s models.AnalyticsSummary) error {
	row := SummaryModel{
		OwnerID:          s.OwnerID,
		AvgHR:            s.AvgHR,
		MinHR:            s.MinHR,
		MaxHR:            s.MaxHR,
		ExerciseSessions: s.ExerciseSessions,
		TotalRecords:     s.TotalRecords,
		ComputedAt:       s.ComputedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (r *Repository) GetSummary(ctx context.Context, ownerID string) (*models.AnalyticsSummary, error) {
	var row SummaryModel
	result := r.db.WithContext(ctx).First(&row, "owner_id = ?", ownerID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &models.AnalyticsSummary{
		OwnerID:          row.OwnerID,
		AvgHR:            row.AvgHR,
		MinHR:            row.MinHR,
		MaxHR:            row.MaxHR,
		ExerciseSessions: row.ExerciseSessions,
		TotalRecords:     row.TotalRecords,
		ComputedAt:       row.ComputedAt,
	}, nil
}
