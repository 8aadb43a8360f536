package alert

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"smartchair/internal/store"

	"go.uber.org/zap"
)

// PendingKey 共享告警标志在 Redis 中的键
const PendingKey = "smartchair:alert:pending"

// Signal 告警信号：Idle ⇄ Pending
// Check 只读，不改变状态；回到 Idle 只能通过 Acknowledge
type Signal interface {
	Raise(ctx context.Context) error
	Check(ctx context.Context) (bool, error)
	Acknowledge(ctx context.Context) error
}

// MemorySignal 进程内告警标志
type MemorySignal struct {
	pending atomic.Bool
	logger  *zap.Logger
}

func NewMemorySignal(logger *zap.Logger) *MemorySignal {
	return &MemorySignal{logger: logger}
}

func (s *MemorySignal) Raise(ctx context.Context) error {
	if !s.pending.Swap(true) {
		s.logger.Info("Alert raised")
	}
	return nil
}

func (s *MemorySignal) Check(ctx context.Context) (bool, error) {
	return s.pending.Load(), nil
}

func (s *MemorySignal) Acknowledge(ctx context.Context) error {
	if s.pending.Swap(false) {
		s.logger.Info("Alert acknowledged")
	}
	return nil
}

// RedisSignal 多实例共享的告警标志（键存在即 Pending）
type RedisSignal struct {
	kv     store.KV
	logger *zap.Logger
}

func NewRedisSignal(kv store.KV, logger *zap.Logger) *RedisSignal {
	return &RedisSignal{kv: kv, logger: logger}
}

func (s *RedisSignal) Raise(ctx context.Context) error {
	if err := s.kv.Set(ctx, PendingKey, "1", 0); err != nil {
		return fmt.Errorf("failed to raise alert: %w", err)
	}
	s.logger.Info("Alert raised", zap.String("key", PendingKey))
	return nil
}

func (s *RedisSignal) Check(ctx context.Context) (bool, error) {
	_, err := s.kv.Get(ctx, PendingKey)
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check alert: %w", err)
	}
	return true, nil
}

func (s *RedisSignal) Acknowledge(ctx context.Context) error {
	if err := s.kv.Del(ctx, PendingKey); err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	s.logger.Info("Alert acknowledged", zap.String("key", PendingKey))
	return nil
}
