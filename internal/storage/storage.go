// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/helmetgate/internal/models"
)

// Storage defines the persistence operations for gate logs and operator config
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Log operations. Logs are append-only.
	SaveLog(ctx context.Context, entry *models.LogEntry) error
	GetLogs(ctx context.Context, filter models.LogFilter) ([]*models.LogEntry, error)
	GetLogCount(ctx context.Context) (int64, error)

	// Config operations. There is at most one config row.
	GetConfig(ctx context.Context) (*models.Config, error)
	UpsertConfig(ctx context.Context, webhookURL string) (*models.Config, error)

	// Administrative operations
	ResetLogs(ctx context.Context) error

	// Statistics and monitoring
	GetStorageStats(ctx context.Context) (*StorageStats, error)
	GetHealth() *StorageHealth
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalLogs     int64      `json:"total_logs"`
	OpenLogs      int64      `json:"open_logs"`
	LatestLog     *time.Time `json:"latest_log,omitempty"`
	ConfigPresent bool       `json:"config_present"`
	DatabaseSize  int64      `json:"database_size_bytes"`
}

// StorageHealth reports the reachability of the backing database
type StorageHealth struct {
	StorageType string            `json:"storage_type"`
	Healthy     bool              `json:"healthy"`
	Details     map[string]string `json:"details,omitempty"`
	LastPing    time.Time         `json:"last_ping"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}

// prepareLog fills in the generated columns of a new log entry
func prepareLog(entry *models.LogEntry, newID func() string) {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	} else {
		entry.CreatedAt = entry.CreatedAt.UTC()
	}
}
