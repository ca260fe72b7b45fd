package heartrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewise/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	OwnerID   string    `gorm:"column:owner_id;not null;uniqueIndex:idx_heart_rate_owner_date_time,priority:1"`
	Date      time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_heart_rate_owner_date_time,priority:2"`
	TimeOfDay string    `gorm:"column:time_of_day;size:5;not null;default:'';uniqueIndex:idx_heart_rate_owner_date_time,priority:3"`
	HRMin     int       `gorm:"column:hr_min;not null"`
	HRMax     int       `gorm:"column:hr_max;not null"`
	Tag       string    `gorm:"column:tag;size:16;not null"`
	Notes     *string   `gorm:"column:notes"`
	Source    string    `gorm:"column:source;size:16"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (RecordModel) TableName() string {
	return "heart_rate_records"
}

// Repository persists heart-rate records in Postgres.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RecordModel{})
}

// Upsert inserts the record or, when (owner, date, time) already exists,
// overwrites its measurement fields.
func (r *Repository) Upsert(ctx context.Context, rec models.HeartRateRecord) error {
	model := toModel(rec)
	now := time.Now().UTC()
	model.ID = uuid.New().String()
	model.CreatedAt = now
	model.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "date"}, {Name: "time_of_day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hr_min", "hr_max", "tag", "notes", "updated_at",
		}),
	}).Create(&model).Error
}

// ListByOwner returns every record of the owner, oldest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]models.HeartRateRecord, error) {
	var rows []RecordModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("date ASC, time_of_day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows)
}

// ListRange returns the owner's records with from <= date <= to, oldest first.
func (r *Repository) ListRange(ctx context.Context, ownerID string, from, to time.Time) ([]models.HeartRateRecord, error) {
	var rows []RecordModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND date BETWEEN ? AND ?", ownerID, from, to).
		Order("date ASC, time_of_day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows)
}

func toModel(rec models.HeartRateRecord) RecordModel {
	model := RecordModel{
		OwnerID: rec.OwnerID,
		Date:    rec.Date,
		HRMin:   rec.HRMin,
		HRMax:   rec.HRMax,
		Tag:     string(rec.Tag),
		Notes:   rec.Notes,
		Source:  rec.Source,
	}
	if rec.Time != nil {
		model.TimeOfDay = rec.Time.String()
	}
	return model
}

func fromModels(rows []RecordModel) ([]models.HeartRateRecord, error) {
	out := make([]models.HeartRateRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.HeartRateRecord{
			OwnerID: row.OwnerID,
			Date:    row.Date.UTC(),
			HRMin:   row.HRMin,
			HRMax:   row.HRMax,
			Tag:     models.Tag(row.Tag),
			Notes:   row.Notes,
			Source:  row.Source,
		}
		if row.TimeOfDay != "" {
			clock, err := ParseStoredClock(row.TimeOfDay)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", row.ID, err)
			}
			rec.Time = &clock
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseStoredClock reads the 24-hour "HH:MM" form used in storage.
func ParseStoredClock(s string) (models.ClockTime, error) {
	var c models.ClockTime
	if _, err := fmt.Sscanf(s, "%02d:%02d", &c.Hour, &c.Minute); err != nil {
		return models.ClockTime{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	if !c.Valid() {
		return models.ClockTime{}, fmt.Errorf("invalid stored time %q", s)
	}
	return c, nil
}
