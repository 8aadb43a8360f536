package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"smartchair/internal/models"

	"go.uber.org/zap"
)

// LatestCacheKey 最新记录在 Redis 中的键
const LatestCacheKey = "smartchair:posture:latest"

// CacheManager 将最新记录镜像到共享 KV（供其他进程读取）
// 进程内的 History.Latest 始终是权威值
type CacheManager struct {
	kv     KV
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(kv KV, logger *zap.Logger) *CacheManager {
	return &CacheManager{kv: kv, logger: logger}
}

// UpdateLatest 写入最新记录（不设 TTL）
func (c *CacheManager) UpdateLatest(ctx context.Context, entry models.TelemetryEntry) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal latest entry: %w", err)
	}
	if err := c.kv.Set(ctx, LatestCacheKey, string(jsonData), 0); err != nil {
		return fmt.Errorf("failed to set latest cache: %w", err)
	}

	c.logger.Debug("Updated latest posture cache", zap.String("key", LatestCacheKey))
	return nil
}

// GetLatest 读取镜像值；不存在时返回哨兵值
func (c *CacheManager) GetLatest(ctx context.Context) (models.TelemetryEntry, error) {
	raw, err := c.kv.Get(ctx, LatestCacheKey)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return models.EmptyEntry(), nil
		}
		return models.EmptyEntry(), fmt.Errorf("failed to get latest cache: %w", err)
	}
	var entry models.TelemetryEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return models.EmptyEntry(), fmt.Errorf("failed to unmarshal latest cache: %w", err)
	}
	return entry, nil
}
