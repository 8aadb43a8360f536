package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smartchair/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogHistory_AppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	repo := NewLogHistoryRepository(path, zap.NewNop())
	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var written []models.TelemetryEntry
	for i := 0; i < 3; i++ {
		e := testEntry("Bad", float64(10*i), base.Add(time.Duration(i)*time.Minute))
		written = append(written, e)
		require.NoError(t, repo.Persist(context.Background(), e, written))
	}
	require.NoError(t, repo.Close())

	reloaded := NewLogHistoryRepository(path, zap.NewNop())
	defer reloaded.Close()
	got, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range written {
		assert.True(t, written[i].Equal(got[i]), "entry %d", i)
	}
}

func TestLogHistory_TornTailIsTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.jsonl")
	good := `{"posture":"Good","distance":1,"sitting_time":2,"timestamp":"2025-05-01T12:00:00.000Z"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(good+`{"posture":"Ba`), 0o644))

	repo := NewLogHistoryRepository(path, zap.NewNop())
	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Good", entries[0].Posture)

	// 新记录从有效末尾继续追加
	e := testEntry("Bad", 5, time.Date(2025, 5, 1, 12, 1, 0, 0, time.UTC))
	require.NoError(t, repo.Persist(context.Background(), e, append(entries, e)))
	require.NoError(t, repo.Close())

	reloaded := NewLogHistoryRepository(path, zap.NewNop())
	defer reloaded.Close()
	got, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bad", got[1].Posture)

	torn, err := filepath.Glob(path + ".torn-*")
	require.NoError(t, err)
	assert.Len(t, torn, 1)
}

func TestLogHistory_UnterminatedLastLineIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	good := `{"posture":"Good","distance":1,"sitting_time":2,"timestamp":"2025-05-01T12:00:00.000Z"}`
	last := `{"posture":"Bad","distance":3,"sitting_time":4,"timestamp":"2025-05-01T12:00:01.000Z"}`
	require.NoError(t, os.WriteFile(path, []byte(good+"\n"+last), 0o644))

	repo := NewLogHistoryRepository(path, zap.NewNop())
	entries, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bad", entries[1].Posture)

	base := time.Date(2025, 5, 1, 12, 1, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		e := testEntry("Good", float64(10+i), base.Add(time.Duration(i)*time.Second))
		entries = append(entries, e)
		require.NoError(t, repo.Persist(context.Background(), e, entries))
	}
	require.NoError(t, repo.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "}{")

	reloaded := NewLogHistoryRepository(path, zap.NewNop())
	defer reloaded.Close()
	got, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := range entries {
		assert.True(t, entries[i].Equal(got[i]), "entry %d", i)
	}

	corrupt, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, corrupt)
}

func TestLogHistory_CorruptMiddleLineQuarantines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	good := `{"posture":"Good","distance":1,"sitting_time":2,"timestamp":"2025-05-01T12:00:00.000Z"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(good+"garbage\n"+good), 0o644))

	repo := NewLogHistoryRepository(path, zap.NewNop())
	defer repo.Close()
	_, err := repo.Load(context.Background())
	assert.True(t, errors.Is(err, ErrCorruptHistory))

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// 隔离后仍可继续追加
	e := testEntry("Good", 1, time.Now())
	require.NoError(t, repo.Persist(context.Background(), e, []models.TelemetryEntry{e}))
}
