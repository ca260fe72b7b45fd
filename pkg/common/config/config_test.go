package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 60*time.Second, cfg.OCRTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled)
	assert.True(t, cfg.CacheEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("OCR_TIMEOUT", "15s")
	t.Setenv("UPSERT_WORKERS", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("EVENTS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 15*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 8, cfg.UpsertWorkers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.False(t, cfg.EventsEnabled)
}
