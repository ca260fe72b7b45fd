package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewise/platform/pkg/common/models"
)

type fakeKV struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	cache := NewSummaryCache(kv, "hr:summary:", time.Minute)

	_, err := cache.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	view := models.AnalyticsResponse{Summary: &models.AnalyticsSummary{OwnerID: "owner-1", AvgHR: 75, TotalRecords: 2}}
	require.NoError(t, cache.Set(ctx, "owner-1", view))
	assert.Equal(t, time.Minute, kv.ttl["hr:summary:owner-1"])

	got, err := cache.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Summary.AvgHR)
	assert.Equal(t, 2, got.Summary.TotalRecords)

	require.NoError(t, cache.Invalidate(ctx, "owner-1"))
	_, err = cache.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSummaryCacheDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	kv.data["hr:summary:owner-1"] = "{not json"
	cache := NewSummaryCache(kv, "hr:summary:", time.Minute)

	_, err := cache.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NotContains(t, kv.data, "hr:summary:owner-1")
}

func TestSummaryCacheSurfacesBackendErrors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("connection refused")
	cache := NewSummaryCache(kv, "p:", time.Minute)

	_, err := cache.Get(context.Background(), "owner-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
