package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	RateLimitRPS   int
	RateLimitBurst int

	// Storage
	StorageDriver string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	CacheEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	EventsEnabled       bool
	KafkaBrokers        []string
	ImportEventsTopic   string
	EventPublishTimeout time.Duration

	// OCR
	OCRBaseURL      string
	OCRAPIKey       string
	OCRTimeout      time.Duration
	OCRTokenURL     string
	OCRClientID     string
	OCRClientSecret string

	// Import pipeline
	SummaryCacheTTL    time.Duration
	SummaryCachePrefix string
	UpsertWorkers      int
	NoteRedactionRules string
	UploadRetention    time.Duration
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 90*time.Second),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 10*1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 40),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pulsewise"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pulsewise"),
		PostgresDB:       getEnv("POSTGRES_DB", "pulsewise"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CacheEnabled:  getBoolEnv("CACHE_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		EventsEnabled:       getBoolEnv("EVENTS_ENABLED", true),
		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		ImportEventsTopic:   getEnv("IMPORT_EVENTS_TOPIC", "heartrate.imports"),
		EventPublishTimeout: getDuration("EVENT_PUBLISH_TIMEOUT", 5*time.Second),

		OCRBaseURL:      getEnv("OCR_BASE_URL", "https://api.ocr.space/parse/image"),
		OCRAPIKey:       getEnv("OCR_API_KEY", ""),
		OCRTimeout:      getDuration("OCR_TIMEOUT", 60*time.Second),
		OCRTokenURL:     getEnv("OCR_TOKEN_URL", ""),
		OCRClientID:     getEnv("OCR_CLIENT_ID", ""),
		OCRClientSecret: getEnv("OCR_CLIENT_SECRET", ""),

		SummaryCacheTTL:    getDuration("SUMMARY_CACHE_TTL", 10*time.Minute),
		SummaryCachePrefix: getEnv("SUMMARY_CACHE_PREFIX", "hr:summary:"),
		UpsertWorkers:      getIntEnv("UPSERT_WORKERS", 4),
		NoteRedactionRules: getEnv("NOTE_REDACTION_RULES", ""),
		UploadRetention:    getDuration("UPLOAD_RETENTION", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
