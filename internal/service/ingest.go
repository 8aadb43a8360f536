package service

import (
	"context"
	"sync"
	"time"

	"smartchair/internal/alert"
	"smartchair/internal/models"
	"smartchair/internal/store"
	"smartchair/internal/validator"

	"go.uber.org/zap"
)

// sideEffectTimeout 旁路写入（Redis 镜像、数据流）的超时
const sideEffectTimeout = 2 * time.Second

// LatestMirror 最新记录的共享镜像（如 Redis）
type LatestMirror interface {
	UpdateLatest(ctx context.Context, entry models.TelemetryEntry) error
	GetLatest(ctx context.Context) (models.TelemetryEntry, error)
}

// EntryPublisher 入库记录的下游发布（如 Redis Streams）
type EntryPublisher interface {
	Publish(ctx context.Context, entry models.TelemetryEntry) error
}

// IngestService 遥测接入管道：校验 → 追加历史（含 Latest）→ 旁路通知
// History 与 Latest 只由本服务写入，其余组件只读
type IngestService struct {
	validator *validator.Validator
	history   *store.History
	signal    alert.Signal
	logger    *zap.Logger

	mirror    LatestMirror
	publisher EntryPublisher

	// 保证旁路通知与追加顺序一致
	sideMu sync.Mutex
}

// Option 可选组件
type Option func(*IngestService)

// WithLatestMirror 每次追加后镜像最新记录
func WithLatestMirror(m LatestMirror) Option {
	return func(s *IngestService) { s.mirror = m }
}

// WithPublisher 每次追加后发布记录
func WithPublisher(p EntryPublisher) Option {
	return func(s *IngestService) { s.publisher = p }
}

// NewIngestService 创建接入服务
func NewIngestService(
	v *validator.Validator,
	history *store.History,
	signal alert.Signal,
	logger *zap.Logger,
	opts ...Option,
) *IngestService {
	s := &IngestService{
		validator: v,
		history:   history,
		signal:    signal,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest 规范化并追加一条读数，返回实际存入的记录
// 返回错误时（持久化超时）记录仍已进入内存历史
func (s *IngestService) Ingest(ctx context.Context, raw map[string]any) (models.TelemetryEntry, error) {
	entry, _ := s.validator.Normalize(raw)

	s.sideMu.Lock()
	defer s.sideMu.Unlock()

	stored, err := s.history.Append(ctx, entry)
	s.notify(stored)

	if err != nil {
		return stored, err
	}
	s.logger.Debug("Reading ingested",
		zap.String("posture", stored.Posture),
		zap.Float64("distance", stored.Distance),
		zap.Float64("sitting_time", stored.SittingTime),
	)
	return stored, nil
}

// notify 旁路通知失败只记录日志，不影响接入结果
func (s *IngestService) notify(entry models.TelemetryEntry) {
	if s.mirror == nil && s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if s.mirror != nil {
		if err := s.mirror.UpdateLatest(ctx, entry); err != nil {
			s.logger.Warn("Failed to mirror latest reading", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, entry); err != nil {
			s.logger.Warn("Failed to publish reading", zap.Error(err))
		}
	}
}

// Latest 最新记录或哨兵值
func (s *IngestService) Latest() models.TelemetryEntry {
	return s.history.Latest()
}

// History 完整历史副本
func (s *IngestService) History() []models.TelemetryEntry {
	return s.history.ReadAll()
}

// Snapshot 导出用的只读快照
func (s *IngestService) Snapshot() []models.TelemetryEntry {
	return s.history.Snapshot()
}

// RaiseAlert 置位告警
func (s *IngestService) RaiseAlert(ctx context.Context) error {
	return s.signal.Raise(ctx)
}

// CheckAlert 读取告警（无副作用）
func (s *IngestService) CheckAlert(ctx context.Context) (bool, error) {
	return s.signal.Check(ctx)
}

// AcknowledgeAlert 确认告警，回到空闲
func (s *IngestService) AcknowledgeAlert(ctx context.Context) error {
	return s.signal.Acknowledge(ctx)
}

// Stats 可观测性计数
func (s *IngestService) Stats(ctx context.Context) models.Stats {
	pending, err := s.signal.Check(ctx)
	if err != nil {
		s.logger.Warn("Failed to read alert state for stats", zap.Error(err))
	}
	return models.Stats{
		Entries:         s.history.Len(),
		PersistFailures: s.history.PersistFailures(),
		Coercions:       s.validator.Coercions(),
		AlertPending:    pending,
		HistoryBackend:  s.history.BackendName(),
		LatestMirrored:  s.mirrorInSync(ctx),
	}
}

// mirrorInSync 镜像值是否与进程内最新记录一致；未配置镜像或读取失败时为 nil
func (s *IngestService) mirrorInSync(ctx context.Context) *bool {
	if s.mirror == nil {
		return nil
	}
	mirrored, err := s.mirror.GetLatest(ctx)
	if err != nil {
		s.logger.Warn("Failed to read latest mirror for stats", zap.Error(err))
		return nil
	}
	inSync := mirrored.Equal(s.history.Latest())
	return &inSync
}
