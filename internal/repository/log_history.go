package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"smartchair/internal/models"

	"go.uber.org/zap"
)

// LogHistoryRepository JSON Lines 追加日志（每条记录一行，每次追加 fsync）
// 与 FileHistoryRepository 相比，追加成本为 O(1)
type LogHistoryRepository struct {
	path   string
	logger *zap.Logger
	writer *serialWriter

	mu   sync.Mutex
	file *os.File
}

// NewLogHistoryRepository 创建追加日志后端
func NewLogHistoryRepository(path string, logger *zap.Logger) *LogHistoryRepository {
	r := &LogHistoryRepository{path: path, logger: logger}
	r.writer = newSerialWriter(func(req writeRequest) error {
		return r.appendLine(req.entry)
	})
	return r
}

var _ HistoryBackend = (*LogHistoryRepository)(nil)

func (r *LogHistoryRepository) Name() string { return "log" }

// Load 逐行恢复
// 末行残缺（写入中断）：残缺内容另存为 <path>.torn-<unix> 后截断，保留前面的记录
// 中间行损坏：整个文件隔离为 <path>.corrupt-<unix>，返回 ErrCorruptHistory
func (r *LogHistoryRepository) Load(ctx context.Context) ([]models.TelemetryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}

	entries := []models.TelemetryEntry{}
	var validEnd int64
	lines := bytes.SplitAfter(data, []byte("\n"))
	for i, line := range lines {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			validEnd += int64(len(line))
			continue
		}
		var e models.TelemetryEntry
		if err := json.Unmarshal(trimmed, &e); err != nil || e.Timestamp == nil {
			if err == nil {
				err = errors.New("entry has no timestamp")
			}
			if isLastLine(lines, i) {
				if err := r.dropTornTail(data[validEnd:]); err != nil {
					return nil, err
				}
				break
			}
			return nil, r.quarantine(fmt.Errorf("line %d: %v", i+1, err))
		}
		entries = append(entries, e)
		validEnd += int64(len(line))
	}

	// 末行完整但缺少换行（写入换行前中断）：记录保留，先补上换行再继续追加
	terminate := validEnd > 0 && data[validEnd-1] != '\n'
	if terminate {
		r.logger.Warn("History log last line has no newline, terminating it",
			zap.String("path", r.path),
			zap.Int("entries", len(entries)),
		)
	}

	if err := r.open(validEnd, terminate); err != nil {
		return nil, err
	}
	return entries, nil
}

// Persist 追加一行
func (r *LogHistoryRepository) Persist(ctx context.Context, entry models.TelemetryEntry, snapshot []models.TelemetryEntry) error {
	return r.writer.submit(ctx, entry, snapshot)
}

// Close 停止写入并关闭文件
func (r *LogHistoryRepository) Close() error {
	r.writer.close()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// open 截断到 size 后定位到末尾；terminate 时先补写换行
func (r *LogHistoryRepository) open(size int64, terminate bool) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history log: %w", err)
	}
	// 截掉残缺尾部，后续从有效末尾开始追加
	if err := f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("failed to truncate history log: %w", err)
	}
	if _, err := f.Seek(size, 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to seek history log: %w", err)
	}
	if terminate {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return fmt.Errorf("failed to terminate history log: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("failed to sync history log: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		r.file.Close()
	}
	r.file = f
	return nil
}

func (r *LogHistoryRepository) appendLine(entry models.TelemetryEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ErrBackendClosed
	}
	if _, err := r.file.Write(line); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync history log: %w", err)
	}
	return nil
}

func (r *LogHistoryRepository) dropTornTail(tail []byte) error {
	target := fmt.Sprintf("%s.torn-%d", r.path, time.Now().Unix())
	if err := os.WriteFile(target, tail, 0o644); err != nil {
		return fmt.Errorf("failed to save torn tail: %w", err)
	}
	r.logger.Warn("History log has a torn last line, saved aside and truncated",
		zap.String("path", r.path),
		zap.String("saved_to", target),
		zap.Int("bytes", len(tail)),
	)
	return nil
}

func (r *LogHistoryRepository) quarantine(cause error) error {
	target := fmt.Sprintf("%s.corrupt-%d", r.path, time.Now().Unix())
	if err := os.Rename(r.path, target); err != nil {
		return fmt.Errorf("%w: %v (quarantine failed: %v)", ErrCorruptHistory, cause, err)
	}
	r.logger.Warn("History log is corrupt, moved aside and starting empty",
		zap.String("path", r.path),
		zap.String("quarantined_to", target),
		zap.Error(cause),
	)
	// 隔离后重新打开一个空日志，服务可继续写入
	if err := r.open(0, false); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorruptHistory, cause)
}

func isLastLine(lines [][]byte, i int) bool {
	for _, l := range lines[i+1:] {
		if len(bytes.TrimSpace(l)) > 0 {
			return false
		}
	}
	return true
}
