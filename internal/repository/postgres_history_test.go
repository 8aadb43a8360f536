package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"smartchair/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresHistoryRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresHistoryRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestPostgresHistory_EnsureSchema(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS posture_history`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistory_LoadOrdered(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	t1 := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	rows := sqlmock.NewRows([]string{"posture", "distance", "sitting_time", "recorded_at"}).
		AddRow("Good", 40.5, 3.0, t1).
		AddRow("Bad", 22.0, 4.0, t2)

	mock.ExpectQuery(`SELECT posture, distance, sitting_time, recorded_at`).
		WillReturnRows(rows)

	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Good", entries[0].Posture)
	assert.Equal(t, 40.5, entries[0].Distance)
	assert.True(t, t1.Equal(entries[0].Timestamp.Time()))
	assert.Equal(t, "Bad", entries[1].Posture)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistory_LoadEmpty(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT posture`).
		WillReturnRows(sqlmock.NewRows([]string{"posture", "distance", "sitting_time", "recorded_at"}))

	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Len(t, entries, 0)
}

func TestPostgresHistory_PersistInsertsRow(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	e := models.TelemetryEntry{Posture: "Bad", Distance: 42, SittingTime: 16, Timestamp: models.NewTimestamp(at)}

	mock.ExpectExec(`INSERT INTO posture_history`).
		WithArgs("Bad", 42.0, 16.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Persist(context.Background(), e, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistory_PersistError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	e := models.TelemetryEntry{Posture: "Bad", Timestamp: models.NewTimestamp(time.Now())}
	mock.ExpectExec(`INSERT INTO posture_history`).
		WillReturnError(errors.New("connection reset"))

	err := repo.Persist(context.Background(), e, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistory_PersistRejectsMissingTimestamp(t *testing.T) {
	db, _, repo := setupMockDB(t)
	defer db.Close()

	assert.Error(t, repo.Persist(context.Background(), models.EmptyEntry(), nil))
}
