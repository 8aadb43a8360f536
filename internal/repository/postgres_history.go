package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartchair/internal/models"

	"go.uber.org/zap"
)

// PostgresHistoryRepository 基于 posture_history 表的历史后端
// 每次追加只插入一行；顺序由 BIGSERIAL id 保证
type PostgresHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresHistoryRepository 创建 postgres 历史后端
func NewPostgresHistoryRepository(db *sql.DB, logger *zap.Logger) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db, logger: logger}
}

var _ HistoryBackend = (*PostgresHistoryRepository)(nil)

func (r *PostgresHistoryRepository) Name() string { return "postgres" }

// EnsureSchema 建表（幂等）
func (r *PostgresHistoryRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS posture_history (
			id           BIGSERIAL PRIMARY KEY,
			posture      TEXT             NOT NULL,
			distance     DOUBLE PRECISION NOT NULL,
			sitting_time DOUBLE PRECISION NOT NULL,
			recorded_at  TIMESTAMPTZ      NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create posture_history: %w", err)
	}
	return nil
}

// Load 按插入顺序读取全部记录
func (r *PostgresHistoryRepository) Load(ctx context.Context) ([]models.TelemetryEntry, error) {
	query := `
		SELECT posture, distance, sitting_time, recorded_at
		FROM posture_history
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query posture_history: %w", err)
	}
	defer rows.Close()

	entries := []models.TelemetryEntry{}
	for rows.Next() {
		var (
			e          models.TelemetryEntry
			recordedAt time.Time
		)
		if err := rows.Scan(&e.Posture, &e.Distance, &e.SittingTime, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan posture_history: %w", err)
		}
		e.Timestamp = models.NewTimestamp(recordedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posture_history: %w", err)
	}

	r.logger.Debug("Loaded posture history from postgres", zap.Int("count", len(entries)))
	return entries, nil
}

// Persist 插入一行（context 取消时由驱动中止）
func (r *PostgresHistoryRepository) Persist(ctx context.Context, entry models.TelemetryEntry, _ []models.TelemetryEntry) error {
	if entry.Timestamp == nil {
		return fmt.Errorf("entry has no timestamp")
	}
	query := `
		INSERT INTO posture_history (posture, distance, sitting_time, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.Posture,
		entry.Distance,
		entry.SittingTime,
		entry.Timestamp.Time(),
	); err != nil {
		return fmt.Errorf("failed to insert posture_history: %w", err)
	}
	return nil
}
