package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Document is one uploaded report. Data is never persisted.
type Document struct {
	OwnerID     string
	FileName    string
	ContentType string
	Data        []byte
}

// UploadModel is the persistence model for upload metadata.
type UploadModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	OwnerID     string     `gorm:"column:owner_id;index:idx_uploads_owner_uploaded,priority:1"`
	FileName    string     `gorm:"column:file_name;size:255"`
	RangeStart  *time.Time `gorm:"column:range_start;type:date"`
	RangeEnd    *time.Time `gorm:"column:range_end;type:date"`
	RecordCount int        `gorm:"column:record_count"`
	UploadedAt  time.Time  `gorm:"column:uploaded_at;index:idx_uploads_owner_uploaded,priority:2"`
}

func (UploadModel) TableName() string {
	return "heart_rate_uploads"
}
