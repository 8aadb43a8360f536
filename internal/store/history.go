package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"smartchair/internal/models"
	"smartchair/internal/repository"

	"go.uber.org/zap"
)

// ErrPersistTimeout 持久化超时；内存中的追加已生效
var ErrPersistTimeout = errors.New("history persist timed out")

// History 有序、只追加的遥测历史，同时维护 Latest
//
// writeMu 串行化 "追加 + 更新 Latest + 持久化"；mu 只保护切片与 Latest 本身，
// 读操作不会被慢速的持久化阻塞。
type History struct {
	backend repository.HistoryBackend
	timeout time.Duration
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	entries []models.TelemetryEntry
	latest  Latest

	persistFailures atomic.Uint64
}

// NewHistory 创建历史存储；timeout 为单次持久化的上限
func NewHistory(backend repository.HistoryBackend, timeout time.Duration, logger *zap.Logger) *History {
	return &History{
		backend: backend,
		timeout: timeout,
		logger:  logger,
		entries: []models.TelemetryEntry{},
	}
}

// Load 从持久化后端恢复；失败时以空序列启动（接受数据丢失，不崩溃），并返回原因供调用方记录
func (h *History) Load(ctx context.Context) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	entries, err := h.backend.Load(ctx)
	if err != nil {
		h.logger.Warn("Failed to load history, starting with empty history",
			zap.String("backend", h.backend.Name()),
			zap.Error(err),
		)
	}
	if entries == nil {
		entries = []models.TelemetryEntry{}
	}

	h.mu.Lock()
	h.entries = entries
	h.latest = Latest{}
	if n := len(entries); n > 0 {
		h.latest.put(entries[n-1])
	}
	h.mu.Unlock()

	h.logger.Info("History loaded",
		zap.String("backend", h.backend.Name()),
		zap.Int("entries", len(entries)),
	)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return nil
}

// Append 追加一条记录并持久化，返回实际存入的记录
//
// 时间戳若早于上一条（时钟回拨），被调整为上一条的时间，保证非递减。
// 持久化失败只记录日志（内存状态领先于持久化状态）；超时返回 ErrPersistTimeout。
func (h *History) Append(ctx context.Context, entry models.TelemetryEntry) (models.TelemetryEntry, error) {
	if entry.Timestamp == nil {
		return entry, fmt.Errorf("entry has no timestamp")
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	if n := len(h.entries); n > 0 {
		last := h.entries[n-1].Timestamp.Time()
		if entry.Timestamp.Time().Before(last) {
			entry.Timestamp = models.NewTimestamp(last)
		}
	}
	h.entries = append(h.entries, entry)
	snapshot := h.entries[:len(h.entries):len(h.entries)]
	h.latest.put(entry)
	h.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.backend.Persist(pctx, entry, snapshot)
	if err == nil {
		return entry, nil
	}

	h.persistFailures.Add(1)
	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.Error("History persist timed out, in-memory history is ahead of durable storage",
			zap.String("backend", h.backend.Name()),
			zap.Int("entries", len(snapshot)),
			zap.Duration("timeout", h.timeout),
			zap.Error(err),
		)
		return entry, fmt.Errorf("%w: %v", ErrPersistTimeout, err)
	}

	h.logger.Error("History persist failed, in-memory history is ahead of durable storage",
		zap.String("backend", h.backend.Name()),
		zap.Int("entries", len(snapshot)),
		zap.Error(err),
	)
	return entry, nil
}

// ReadAll 返回按插入顺序的完整副本
func (h *History) ReadAll() []models.TelemetryEntry {
	return slices.Clone(h.Snapshot())
}

// Snapshot 返回当前序列的只读视图（不复制，调用方不得修改元素）
func (h *History) Snapshot() []models.TelemetryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[:len(h.entries):len(h.entries)]
}

// Latest 返回最近一条记录或哨兵值
func (h *History) Latest() models.TelemetryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest.Get()
}

// Len 当前记录数
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// PersistFailures 持久化失败累计次数
func (h *History) PersistFailures() uint64 {
	return h.persistFailures.Load()
}

// BackendName 持久化后端名称
func (h *History) BackendName() string {
	return h.backend.Name()
}
