package prediction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewise/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TriggerImport = "import"

	defaultHistoryLimit = 50
)

// PredictionModel is the persistence model for risk predictions. Rows are
// only ever inserted.
type PredictionModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	OwnerID   string            `gorm:"column:owner_id;index:idx_predictions_owner_created,priority:1"`
	Score     float64           `gorm:"column:risk_score;type:numeric(5,4)"`
	Level     string            `gorm:"column:risk_level;size:16"`
	Trigger   string            `gorm:"column:trigger_source;size:32"`
	Features  datatypes.JSONMap `gorm:"column:features"`
	CreatedAt time.Time         `gorm:"column:created_at;index:idx_predictions_owner_created,priority:2"`
}

// TableName overrides gorm naming.
func (PredictionModel) TableName() string {
	return "risk_predictions"
}

// Repository stores the append-only prediction history.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionModel{})
}

func (r *Repository) AppendPrediction(ctx context.Context, p *models.PredictionRecord) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	row := PredictionModel{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Score:     p.Score,
		Level:     p.Level,
		Trigger:   p.Trigger,
		Features:  datatypes.JSONMap(p.Features),
		CreatedAt: p.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// LatestPrediction returns the newest prediction of the owner.
func (r *Repository) LatestPrediction(ctx context.Context, ownerID string) (*models.PredictionRecord, error) {
	var row PredictionModel
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	rec := fromModel(row)
	return &rec, nil
}

// RecentPredictions returns the owner's predictions newest first, up to limit.
func (r *Repository) RecentPredictions(ctx context.Context, ownerID string, limit int) ([]models.PredictionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []PredictionModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.PredictionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func fromModel(row PredictionModel) models.PredictionRecord {
	return models.PredictionRecord{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Score:     row.Score,
		Level:     row.Level,
		Trigger:   row.Trigger,
		Features:  map[string]interface{}(row.Features),
		CreatedAt: row.CreatedAt,
	}
}
