package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/helmetgate/internal/config"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) Storage {
	t.Helper()

	cfg := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "nested", "gate.db"),
		MaxConnections:   4,
		MaxIdleTime:      time.Minute,
	}

	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"gate.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		sqliteDSN("gate.db"))
	assert.Equal(t,
		"file:gate.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		sqliteDSN("file:gate.db?mode=rwc"))
	assert.Equal(t, "gate.db?_pragma=busy_timeout(100)", sqliteDSN("gate.db?_pragma=busy_timeout(100)"))
}

func TestSQLiteLogs(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	image := "/uploads/1714550400000-rider.jpg"
	for i := 0; i < 5; i++ {
		entry := &models.LogEntry{
			IsOpen:    i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 4 {
			entry.Image = &image
		}
		require.NoError(t, store.SaveLog(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	count, err := store.GetLogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	t.Run("first page is newest first", func(t *testing.T) {
		logs, err := store.GetLogs(ctx, models.LogFilter{Page: 1, Limit: 2})
		require.NoError(t, err)
		require.Len(t, logs, 2)

		assert.True(t, logs[0].CreatedAt.Equal(base.Add(4*time.Minute)))
		assert.True(t, logs[1].CreatedAt.Equal(base.Add(3*time.Minute)))
		require.NotNil(t, logs[0].Image)
		assert.Equal(t, image, *logs[0].Image)
		assert.Nil(t, logs[1].Image)
		assert.True(t, logs[0].IsOpen)
		assert.False(t, logs[1].IsOpen)
	})

	t.Run("last page is partial", func(t *testing.T) {
		logs, err := store.GetLogs(ctx, models.LogFilter{Page: 3, Limit: 2})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.True(t, logs[0].CreatedAt.Equal(base))
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		logs, err := store.GetLogs(ctx, models.LogFilter{Page: 9, Limit: 2})
		require.NoError(t, err)
		assert.NotNil(t, logs)
		assert.Empty(t, logs)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.GetStorageStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.TotalLogs)
		assert.Equal(t, int64(3), stats.OpenLogs)
		require.NotNil(t, stats.LatestLog)
		assert.True(t, stats.LatestLog.Equal(base.Add(4*time.Minute)))
		assert.False(t, stats.ConfigPresent)
	})

	t.Run("reset empties the table", func(t *testing.T) {
		require.NoError(t, store.ResetLogs(ctx))

		count, err := store.GetLogCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, store.SaveLog(ctx, &models.LogEntry{IsOpen: true}))
		count, err = store.GetLogCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestSQLiteConfig(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	first, err := store.UpsertConfig(ctx, "http://192.168.1.20:5000")
	require.NoError(t, err)
	require.NotNil(t, first.WebhookURL)
	assert.Equal(t, "http://192.168.1.20:5000", *first.WebhookURL)

	second, err := store.UpsertConfig(ctx, "http://192.168.1.21:5000")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "http://192.168.1.21:5000", *second.WebhookURL)

	stored, err := store.GetConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "http://192.168.1.21:5000", *stored.WebhookURL)
}

func TestSQLiteConcurrentConfigUpserts(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := store.UpsertConfig(ctx, "http://gate.local")
			if assert.NoError(t, err) {
				ids <- cfg.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
	}

	sqlite := store.(*SQLiteStorage)
	var rows int
	require.NoError(t, sqlite.db.QueryRow("SELECT COUNT(*) FROM config").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSQLiteMigrateIsRepeatable(t *testing.T) {
	store := newTestSQLite(t)
	require.NoError(t, store.Migrate())

	health := store.GetHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, "SQLite", health.StorageType)
}

func TestNewStorageRejectsUnknownType(t *testing.T) {
	_, err := NewStorage(&config.StorageConfig{Type: "mongo", ConnectionString: "x", MaxConnections: 1})
	assert.Error(t, err)

	_, err = NewStorage(&config.StorageConfig{Type: "sqlite", MaxConnections: 1})
	assert.Error(t, err)
}
