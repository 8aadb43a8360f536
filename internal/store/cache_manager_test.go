package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"smartchair/internal/models"
	"smartchair/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheManager_UpdateLatest_WritesJSON(t *testing.T) {
	kv := newFakeKVStore()
	cm := store.NewCacheManager(kv, zap.NewNop())

	e := models.TelemetryEntry{Posture: "Bad", Distance: 42, SittingTime: 16, Timestamp: models.NewTimestamp(time.Now())}
	require.NoError(t, cm.UpdateLatest(context.Background(), e))

	raw, err := kv.Get(context.Background(), store.LatestCacheKey)
	require.NoError(t, err)

	var decoded models.TelemetryEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.True(t, e.Equal(decoded))

	got, err := cm.GetLatest(context.Background())
	require.NoError(t, err)
	require.True(t, e.Equal(got))
}

func TestCacheManager_GetLatest_MissReturnsSentinel(t *testing.T) {
	cm := store.NewCacheManager(newFakeKVStore(), zap.NewNop())

	got, err := cm.GetLatest(context.Background())
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
	require.Equal(t, models.UnknownPosture, got.Posture)
}
