package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsewise/platform/pkg/analytics"
	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/common/models"
	"github.com/pulsewise/platform/pkg/extraction"
	"github.com/pulsewise/platform/pkg/heartrate"
	"github.com/pulsewise/platform/pkg/observability/metrics"
	"github.com/pulsewise/platform/pkg/parser"
	"github.com/pulsewise/platform/pkg/prediction"
	"github.com/pulsewise/platform/pkg/risk"
	"github.com/pulsewise/platform/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	EventImportCompleted = "heartrate.import.completed"
	eventSource          = "import-service"

	outcomeSuccess = "success"
)

type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (extraction.Result, error)
}

type RecordReader interface {
	ListRange(ctx context.Context, ownerID string, from, to time.Time) ([]models.HeartRateRecord, error)
}

type PredictionStore interface {
	AppendPrediction(ctx context.Context, p *models.PredictionRecord) error
	LatestPrediction(ctx context.Context, ownerID string) (*models.PredictionRecord, error)
	RecentPredictions(ctx context.Context, ownerID string, limit int) ([]models.PredictionRecord, error)
}

type UploadStore interface {
	CreateUpload(ctx context.Context, u *models.UploadMetadata) error
	ListUploads(ctx context.Context, ownerID string, limit int) ([]models.UploadMetadata, error)
	DeleteUploadsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SummaryCache is the optional read cache of the analytics view.
type SummaryCache interface {
	Get(ctx context.Context, ownerID string) (*models.AnalyticsResponse, error)
	Set(ctx context.Context, ownerID string, view models.AnalyticsResponse) error
	Invalidate(ctx context.Context, ownerID string) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

// Deps wires the import pipeline. Cache and Events may be nil.
type Deps struct {
	Validator    *Validator
	Extractor    Extractor
	Upserter     *heartrate.Upserter
	Aggregator   *analytics.Aggregator
	Records      RecordReader
	Predictions  PredictionStore
	Uploads      UploadStore
	Cache        SummaryCache
	Events       EventPublisher
	EventTimeout time.Duration
	Retention    time.Duration
	Now          func() time.Time
}

// Service runs document imports and serves the owner's derived views.
type Service struct {
	validator    *Validator
	extractor    Extractor
	upserter     *heartrate.Upserter
	aggregator   *analytics.Aggregator
	records      RecordReader
	predictions  PredictionStore
	uploads      UploadStore
	cache        SummaryCache
	events       EventPublisher
	eventTimeout time.Duration
	retention    time.Duration
	now          func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EventTimeout <= 0 {
		deps.EventTimeout = 5 * time.Second
	}
	return &Service{
		validator:    deps.Validator,
		extractor:    deps.Extractor,
		upserter:     deps.Upserter,
		aggregator:   deps.Aggregator,
		records:      deps.Records,
		predictions:  deps.Predictions,
		uploads:      deps.Uploads,
		cache:        deps.Cache,
		events:       deps.Events,
		eventTimeout: deps.EventTimeout,
		retention:    deps.Retention,
		now:          deps.Now,
	}
}

// Import runs one document through extraction, parsing, upsert, analytics
// recompute and risk scoring. Every failure is an *ImportError. Nothing after
// the extraction call is retried.
func (s *Service) Import(ctx context.Context, doc Document) (*models.ImportResponse, error) {
	start := time.Now()
	resp, err := s.runImport(ctx, doc)

	outcome := outcomeSuccess
	if err != nil {
		outcome = string(ReasonOf(err))
		logger.WithFields(logrus.Fields{
			"owner_id": doc.OwnerID,
			"file":     doc.FileName,
			"reason":   outcome,
		}).WithError(err).Warn("heart-rate import failed")
	}
	metrics.ObserveImport(outcome)
	metrics.ObserveStage("total", time.Since(start).Seconds())
	return resp, err
}

func (s *Service) runImport(ctx context.Context, doc Document) (*models.ImportResponse, error) {
	if strings.TrimSpace(doc.OwnerID) == "" {
		return nil, newImportError(ReasonInvalidInput, "owner required", nil)
	}
	if err := s.validator.Validate(doc); err != nil {
		return nil, newImportError(ReasonInvalidInput, err.Error(), err)
	}

	log := logger.WithFields(logrus.Fields{"owner_id": doc.OwnerID, "file": doc.FileName})
	now := s.now()

	text, err := s.extractText(ctx, doc, log)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	year := parser.InferYear(text, now)
	parsed := parser.Parse(text, year)
	metrics.ObserveStage("parse", time.Since(stageStart).Seconds())
	metrics.ObserveParseStrategies(parsed.Structured, parsed.Fallback)
	log.WithFields(logrus.Fields{
		"stage":      "parse",
		"year":       year,
		"candidates": parsed.Candidates,
		"records":    len(parsed.Records),
		"fallback":   parsed.Fallback,
	}).Info("report parsed")
	if len(parsed.Records) == 0 {
		return nil, newImportError(ReasonNoRecordsParsed, "no heart-rate rows found in document", nil)
	}

	stageStart = time.Now()
	report, err := s.upserter.Apply(ctx, doc.OwnerID, parsed.Records)
	metrics.ObserveStage("upsert", time.Since(stageStart).Seconds())
	metrics.ObserveRecords(report.Applied, report.Skipped, parsed.Skipped())
	if err != nil {
		return nil, newImportError(ReasonPersistenceFailed, "failed to store heart-rate records", err)
	}
	if report.Applied == 0 {
		return nil, newImportError(ReasonNoRecordsParsed, "no valid heart-rate rows found in document", nil)
	}

	stageStart = time.Now()
	summary, err := s.aggregator.Recompute(ctx, doc.OwnerID)
	metrics.ObserveStage("aggregate", time.Since(stageStart).Seconds())
	if err != nil {
		return nil, newImportError(ReasonPersistenceFailed, "failed to recompute analytics", err)
	}

	assessment := risk.Score(risk.InputsFromSummary(&summary))
	pred := &models.PredictionRecord{
		OwnerID:   doc.OwnerID,
		Score:     assessment.Score,
		Level:     assessment.Level,
		Trigger:   prediction.TriggerImport,
		Features:  assessment.Features,
		CreatedAt: now.UTC(),
	}
	if err := s.predictions.AppendPrediction(ctx, pred); err != nil {
		return nil, newImportError(ReasonPersistenceFailed, "failed to store risk prediction", err)
	}
	metrics.ObserveRiskScore(assessment.Score)

	rangeStart, rangeEnd := dateRange(parsed.Records)
	upload := &models.UploadMetadata{
		OwnerID:     doc.OwnerID,
		FileName:    doc.FileName,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		RecordCount: len(parsed.Records),
		UploadedAt:  now.UTC(),
	}
	if err := s.uploads.CreateUpload(ctx, upload); err != nil {
		return nil, newImportError(ReasonPersistenceFailed, "failed to store upload metadata", err)
	}

	s.refreshCache(ctx, doc.OwnerID, models.AnalyticsResponse{Summary: &summary, LatestRisk: pred})
	s.publishCompleted(ctx, upload, summary, assessment, report)

	log.WithFields(logrus.Fields{
		"stage":      "complete",
		"upload_id":  upload.ID.String(),
		"records":    len(parsed.Records),
		"applied":    report.Applied,
		"skipped":    report.Skipped,
		"risk_score": assessment.Score,
		"risk_level": assessment.Level,
	}).Info("heart-rate import completed")

	return &models.ImportResponse{
		Success:  true,
		Message:  fmt.Sprintf("Imported %d heart-rate records from %s", report.Applied, doc.FileName),
		UploadID: upload.ID.String(),
		Summary: models.ImportSummary{
			TotalRecords:     len(parsed.Records),
			RecordsApplied:   report.Applied,
			RecordsSkipped:   report.Skipped,
			DateRange:        formatRange(rangeStart, rangeEnd),
			AvgHR:            summary.AvgHR,
			MinHR:            summary.MinHR,
			MaxHR:            summary.MaxHR,
			ExerciseSessions: summary.ExerciseSessions,
		},
		Risk: models.RiskSummary{Score: assessment.Score, Level: assessment.Level},
	}, nil
}

// extractText calls the OCR service once. Partial text carried by a failed
// extraction is used when it has content.
func (s *Service) extractText(ctx context.Context, doc Document, log *logrus.Entry) (string, error) {
	stageStart := time.Now()
	result, err := s.extractor.Extract(ctx, extraction.Request{
		Document:  doc.Data,
		FileName:  doc.FileName,
		Language:  extraction.DefaultLanguage,
		TableMode: true,
	})
	metrics.ObserveStage("extract", time.Since(stageStart).Seconds())

	text := result.Text
	if err != nil {
		var extErr *extraction.Error
		if !errors.As(err, &extErr) || strings.TrimSpace(extErr.Text) == "" {
			return "", newImportError(ReasonExtractionFailed, "text extraction failed", err)
		}
		log.WithError(err).Warn("extraction failed, continuing with partial text")
		text = extErr.Text
	} else if result.Partial {
		log.WithField("pages", result.Pages).Warn("extraction returned partial text")
	}

	if strings.TrimSpace(text) == "" {
		return "", newImportError(ReasonEmptyText, "no text could be extracted from the document", nil)
	}
	return text, nil
}

func (s *Service) refreshCache(ctx context.Context, ownerID string, view models.AnalyticsResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, ownerID, view); err != nil {
		logger.WithField("owner_id", ownerID).WithError(err).Warn("failed to refresh summary cache")
		if err := s.cache.Invalidate(ctx, ownerID); err != nil {
			logger.WithField("owner_id", ownerID).WithError(err).Warn("failed to invalidate summary cache")
		}
	}
}

func (s *Service) publishCompleted(ctx context.Context, upload *models.UploadMetadata, summary models.AnalyticsSummary, assessment risk.Assessment, report heartrate.Report) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.eventTimeout)
	defer cancel()

	payload := map[string]interface{}{
		"owner_id":        upload.OwnerID,
		"upload_id":       upload.ID.String(),
		"file_name":       upload.FileName,
		"record_count":    upload.RecordCount,
		"records_applied": report.Applied,
		"total_records":   summary.TotalRecords,
		"avg_hr":          summary.AvgHR,
		"risk_score":      assessment.Score,
		"risk_level":      assessment.Level,
		"completed_at":    upload.UploadedAt,
	}
	if err := s.events.PublishEvent(ctx, EventImportCompleted, eventSource, upload.OwnerID, payload); err != nil {
		logger.WithField("upload_id", upload.ID.String()).WithError(err).Warn("failed to publish import event")
	}
}

// Analytics returns the owner's current summary and latest risk, served from
// the cache when present.
func (s *Service) Analytics(ctx context.Context, ownerID string) (*models.AnalyticsResponse, error) {
	if s.cache != nil {
		view, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			logger.WithField("owner_id", ownerID).WithError(err).Warn("summary cache unavailable")
		}
	}

	summary, err := s.aggregator.Summary(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	view := models.AnalyticsResponse{Summary: summary}
	latest, err := s.predictions.LatestPrediction(ctx, ownerID)
	switch {
	case err == nil:
		view.LatestRisk = latest
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	s.refreshCache(ctx, ownerID, view)
	return &view, nil
}

// Records returns the owner's records dated within [from, to], oldest first.
func (s *Service) Records(ctx context.Context, ownerID string, from, to time.Time) ([]models.HeartRateRecord, error) {
	return s.records.ListRange(ctx, ownerID, from, to)
}

func (s *Service) Predictions(ctx context.Context, ownerID string, limit int) ([]models.PredictionRecord, error) {
	return s.predictions.RecentPredictions(ctx, ownerID, limit)
}

func (s *Service) Uploads(ctx context.Context, ownerID string, limit int) ([]models.UploadMetadata, error) {
	return s.uploads.ListUploads(ctx, ownerID, limit)
}

// Cleanup drops upload metadata older than the retention window. A zero
// retention keeps everything.
func (s *Service) Cleanup(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	removed, err := s.uploads.DeleteUploadsBefore(ctx, s.now().UTC().Add(-s.retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.WithField("removed", removed).Info("expired upload metadata removed")
	}
	return nil
}

func dateRange(records []models.HeartRateRecord) (*time.Time, *time.Time) {
	if len(records) == 0 {
		return nil, nil
	}
	start, end := records[0].Date, records[0].Date
	for _, rec := range records[1:] {
		if rec.Date.Before(start) {
			start = rec.Date
		}
		if rec.Date.After(end) {
			end = rec.Date
		}
	}
	return &start, &end
}

func formatRange(start, end *time.Time) models.DateRange {
	var out models.DateRange
	if start != nil {
		out.Start = start.Format(models.DateLayout)
	}
	if end != nil {
		out.End = end.Format(models.DateLayout)
	}
	return out
}
