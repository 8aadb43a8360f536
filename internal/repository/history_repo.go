package repository

import (
	"context"

	"smartchair/internal/models"
)

// HistoryBackend 历史记录的持久化后端
// Persist 在 store 的写锁内被调用：entry 是刚追加的记录，snapshot 是包含它的完整序列（只读）
type HistoryBackend interface {
	// Load 启动时恢复完整序列（按插入顺序）
	Load(ctx context.Context) ([]models.TelemetryEntry, error)

	// Persist 持久化一次追加；返回前写入必须已完成（write-through）
	Persist(ctx context.Context, entry models.TelemetryEntry, snapshot []models.TelemetryEntry) error

	// Name 后端名称（用于日志与 /stats）
	Name() string
}
