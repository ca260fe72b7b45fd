package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pulsewise/platform/pkg/analytics"
	"github.com/pulsewise/platform/pkg/common/config"
	"github.com/pulsewise/platform/pkg/common/database"
	"github.com/pulsewise/platform/pkg/common/kafka"
	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/dlp"
	"github.com/pulsewise/platform/pkg/extraction"
	"github.com/pulsewise/platform/pkg/gateway/middleware"
	"github.com/pulsewise/platform/pkg/heartrate"
	"github.com/pulsewise/platform/pkg/ingestion"
	"github.com/pulsewise/platform/pkg/observability/metrics"
	"github.com/pulsewise/platform/pkg/prediction"
	"github.com/pulsewise/platform/pkg/storage"
	"github.com/sirupsen/logrus"
)

type stores struct {
	records     heartrate.Store
	summaries   analytics.SummaryStore
	predictions ingestion.PredictionStore
	uploads     ingestion.UploadStore
	ready       func(ctx context.Context) error
}

func openStores(cfg *config.Config) (stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		mem := storage.NewMemoryStore()
		logger.Log.Warn("using in-memory storage, data is lost on restart")
		return stores{
			records:     mem,
			summaries:   mem,
			predictions: mem,
			uploads:     mem,
			ready:       func(context.Context) error { return nil },
		}, nil
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		return stores{}, err
	}

	recordRepo := heartrate.NewRepository(db)
	summaryRepo := analytics.NewRepository(db)
	predictionRepo := prediction.NewRepository(db)
	uploadRepo := ingestion.NewRepository(db)
	for name, migrate := range map[string]func() error{
		"heart_rate_records":   recordRepo.AutoMigrate,
		"heart_rate_summaries": summaryRepo.AutoMigrate,
		"risk_predictions":     predictionRepo.AutoMigrate,
		"heart_rate_uploads":   uploadRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			return stores{}, fmt.Errorf("migrating %s: %w", name, err)
		}
	}

	return stores{
		records:     recordRepo,
		summaries:   summaryRepo,
		predictions: predictionRepo,
		uploads:     uploadRepo,
		ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, nil
}

func main() {
	logger.Init()
	cfg := config.Load()

	st, err := openStores(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to open storage")
	}
	defer database.ClosePostgres()

	rules, err := dlp.LoadRules(cfg.NoteRedactionRules)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load note redaction rules")
	}
	redactor, err := dlp.NewDetector(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid note redaction rules")
	}

	deps := ingestion.Deps{
		Validator: ingestion.NewValidator(cfg.MaxUploadBytes, ingestion.DefaultContentTypes()),
		Extractor: extraction.NewClient(extraction.Options{
			BaseURL:      cfg.OCRBaseURL,
			APIKey:       cfg.OCRAPIKey,
			Timeout:      cfg.OCRTimeout,
			TokenURL:     cfg.OCRTokenURL,
			ClientID:     cfg.OCRClientID,
			ClientSecret: cfg.OCRClientSecret,
		}),
		Upserter:     heartrate.NewUpserter(st.records, cfg.UpsertWorkers, redactor.Sanitize),
		Aggregator:   analytics.NewAggregator(st.records, st.summaries),
		Records:      st.records,
		Predictions:  st.predictions,
		Uploads:      st.uploads,
		EventTimeout: cfg.EventPublishTimeout,
		Retention:    cfg.UploadRetention,
	}

	if cfg.CacheEnabled {
		deps.Cache = storage.NewSummaryCache(database.GetRedis(cfg), cfg.SummaryCachePrefix, cfg.SummaryCacheTTL)
		defer database.CloseRedis()
	}

	if cfg.EventsEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.ImportEventsTopic)
		defer producer.Close()
		deps.Events = producer
	}

	svc := ingestion.NewService(deps)
	handler := ingestion.NewHTTPHandler(svc, cfg.MaxUploadBytes)

	router := mux.NewRouter()
	router.Use(handlers.ProxyHeaders, middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.ready(ctx); err != nil {
			logger.Log.WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"storage": cfg.StorageDriver,
		}).Info("Import Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	if cfg.UploadRetention > 0 {
		go func() {
			ticker := time.NewTicker(12 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := svc.Cleanup(ctx); err != nil {
						logger.Log.WithError(err).Warn("cleanup job failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Import Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Import Service stopped")
}
