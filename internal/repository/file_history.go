package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smartchair/internal/models"

	"go.uber.org/zap"
)

// FileHistoryRepository 单个 JSON 数组文件，每次追加全量重写（临时文件 + fsync + rename）
type FileHistoryRepository struct {
	path   string
	logger *zap.Logger
	writer *serialWriter
}

// NewFileHistoryRepository 创建 JSON 文件历史后端
func NewFileHistoryRepository(path string, logger *zap.Logger) *FileHistoryRepository {
	r := &FileHistoryRepository{path: path, logger: logger}
	r.writer = newSerialWriter(func(req writeRequest) error {
		return r.writeSnapshot(req.snapshot)
	})
	return r
}

var _ HistoryBackend = (*FileHistoryRepository)(nil)

func (r *FileHistoryRepository) Name() string { return "file" }

// Load 读取历史文件
// 不存在：初始化为空并立即写入 "[]"
// 损坏：重命名为 <path>.corrupt-<unix> 保留现场，返回 ErrCorruptHistory
func (r *FileHistoryRepository) Load(ctx context.Context) ([]models.TelemetryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Info("History file not found, initializing empty history", zap.String("path", r.path))
			if err := r.writeSnapshot([]models.TelemetryEntry{}); err != nil {
				return nil, fmt.Errorf("failed to initialize history file: %w", err)
			}
			return []models.TelemetryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []models.TelemetryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, r.quarantine(err)
	}
	for i, e := range entries {
		if e.Timestamp == nil {
			return nil, r.quarantine(fmt.Errorf("entry %d has no timestamp", i))
		}
	}
	if entries == nil {
		entries = []models.TelemetryEntry{}
	}
	return entries, nil
}

// Persist 全量重写；超时返回后写入仍按顺序完成
func (r *FileHistoryRepository) Persist(ctx context.Context, entry models.TelemetryEntry, snapshot []models.TelemetryEntry) error {
	return r.writer.submit(ctx, entry, snapshot)
}

// Close 停止写入 goroutine
func (r *FileHistoryRepository) Close() error {
	r.writer.close()
	return nil
}

func (r *FileHistoryRepository) writeSnapshot(snapshot []models.TelemetryEntry) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return writeFileAtomic(r.path, data)
}

func (r *FileHistoryRepository) quarantine(cause error) error {
	target := fmt.Sprintf("%s.corrupt-%d", r.path, time.Now().Unix())
	if err := os.Rename(r.path, target); err != nil {
		r.logger.Error("Failed to quarantine corrupt history file",
			zap.String("path", r.path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v (quarantine failed: %v)", ErrCorruptHistory, cause, err)
	}
	r.logger.Warn("History file is corrupt, moved aside and starting empty",
		zap.String("path", r.path),
		zap.String("quarantined_to", target),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %v", ErrCorruptHistory, cause)
}

// writeFileAtomic 同目录临时文件写入后 rename，避免留下半写文件
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	// rename 本身需要目录落盘
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
