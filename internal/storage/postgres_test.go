package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartdevs17/helmetgate/internal/config"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set HELMETGATE_TEST_POSTGRES_URL to a disposable database to run these.
func newTestPostgres(t *testing.T) Storage {
	t.Helper()

	dsn := os.Getenv("HELMETGATE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("HELMETGATE_TEST_POSTGRES_URL not set")
	}

	store, err := Open(&config.StorageConfig{
		Type:             "postgres",
		ConnectionString: dsn,
		MaxConnections:   4,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, store.ResetLogs(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresLogsAndConfig(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveLog(ctx, &models.LogEntry{
			IsOpen:    i == 2,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := store.GetLogs(ctx, models.LogFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].IsOpen)
	assert.True(t, logs[0].CreatedAt.After(logs[2].CreatedAt))

	first, err := store.UpsertConfig(ctx, "http://10.0.0.5:5000")
	require.NoError(t, err)
	second, err := store.UpsertConfig(ctx, "http://10.0.0.6:5000")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "http://10.0.0.6:5000", *second.WebhookURL)

	stats, err := store.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLogs)
	assert.Equal(t, int64(1), stats.OpenLogs)
	assert.True(t, stats.ConfigPresent)
}
