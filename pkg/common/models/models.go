package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	HeartRateFloor   = 20
	HeartRateCeiling = 300

	SourceImport = "import"
	SourceManual = "manual"

	DateLayout = "2006-01-02"
)

// Tag classifies the activity context of a heart-rate measurement.
type Tag string

const (
	TagExercising Tag = "Exercising"
	TagNormal     Tag = "Normal"
	TagUnknown    Tag = "Unknown"
)

func (t Tag) Valid() bool {
	switch t {
	case TagExercising, TagNormal, TagUnknown:
		return true
	default:
		return false
	}
}

// ClockTime is a minute-resolution time of day in 24-hour form.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// HeartRateRecord is a single measurement. (OwnerID, Date, Time) is its identity.
type HeartRateRecord struct {
	OwnerID string     `json:"owner_id"`
	Date    time.Time  `json:"date"`
	Time    *ClockTime `json:"time,omitempty"`
	HRMin   int        `json:"hr_min"`
	HRMax   int        `json:"hr_max"`
	Tag     Tag        `json:"tag"`
	Notes   *string    `json:"notes,omitempty"`
	Source  string     `json:"source"`
}

// Key returns the composite identity used for idempotent merges.
func (r HeartRateRecord) Key() RecordKey {
	key := RecordKey{OwnerID: r.OwnerID, Date: r.Date.Format(DateLayout)}
	if r.Time != nil {
		key.Time = r.Time.String()
	}
	return key
}

func (r HeartRateRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("owner required")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("date required")
	}
	if r.Time != nil && !r.Time.Valid() {
		return fmt.Errorf("time %s out of range", r.Time)
	}
	if r.HRMin < HeartRateFloor || r.HRMax > HeartRateCeiling {
		return fmt.Errorf("heart rate %d-%d outside [%d,%d]", r.HRMin, r.HRMax, HeartRateFloor, HeartRateCeiling)
	}
	if r.HRMin > r.HRMax {
		return fmt.Errorf("heart rate min %d exceeds max %d", r.HRMin, r.HRMax)
	}
	if !r.Tag.Valid() {
		return fmt.Errorf("unknown tag %q", r.Tag)
	}
	return nil
}

// RecordKey is the (owner, date, time) triple. Time is "" when absent.
type RecordKey struct {
	OwnerID string
	Date    string
	Time    string
}

// AnalyticsSummary is derived in full from an owner's records.
type AnalyticsSummary struct {
	OwnerID          string    `json:"owner_id"`
	AvgHR            float64   `json:"avg_hr"`
	MinHR            int       `json:"min_hr"`
	MaxHR            int       `json:"max_hr"`
	ExerciseSessions int       `json:"exercise_sessions"`
	TotalRecords     int       `json:"total_records"`
	ComputedAt       time.Time `json:"computed_at"`
}

// PredictionRecord is append-only.
type PredictionRecord struct {
	ID        uuid.UUID              `json:"id"`
	OwnerID   string                 `json:"owner_id"`
	Score     float64                `json:"risk_score"`
	Level     string                 `json:"risk_level"`
	Trigger   string                 `json:"trigger"`
	Features  map[string]interface{} `json:"features"`
	CreatedAt time.Time              `json:"created_at"`
}

// UploadMetadata describes an ingested document. The bytes are not kept.
type UploadMetadata struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	FileName    string     `json:"file_name"`
	RangeStart  *time.Time `json:"range_start,omitempty"`
	RangeEnd    *time.Time `json:"range_end,omitempty"`
	RecordCount int        `json:"record_count"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

// Import API payloads

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ImportSummary struct {
	TotalRecords     int       `json:"total_records"`
	RecordsApplied   int       `json:"records_applied"`
	RecordsSkipped   int       `json:"records_skipped"`
	DateRange        DateRange `json:"date_range"`
	AvgHR            float64   `json:"avg_hr"`
	MinHR            int       `json:"min_hr"`
	MaxHR            int       `json:"max_hr"`
	ExerciseSessions int       `json:"exercise_sessions"`
}

type RiskSummary struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

type ImportResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	UploadID string        `json:"upload_id,omitempty"`
	Summary  ImportSummary `json:"summary"`
	Risk     RiskSummary   `json:"risk"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AnalyticsResponse struct {
	Summary    *AnalyticsSummary `json:"summary"`
	LatestRisk *PredictionRecord `json:"latest_risk,omitempty"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
