// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied to every pooled connection through the DSN
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
}

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage").WithField("driver", "sqlite"),
		migrations: GetSQLiteMigrations(),
	}
}

// sqliteDSN appends the connection pragmas unless the caller set their own
func sqliteDSN(connection string) string {
	if strings.Contains(connection, "_pragma=") {
		return connection
	}
	sep := "?"
	if strings.Contains(connection, "?") {
		sep = "&"
	}
	return connection + sep + strings.Join(sqlitePragmas, "&")
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	path := strings.TrimPrefix(s.config.ConnectionString, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(s.config.ConnectionString))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping SQLite database", err.Error())
	}

	s.db = db
	s.logger.WithField("path", path).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.Info("Starting database migrations")

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// SaveLog appends a log entry, generating its id and timestamp when unset
func (s *SQLiteStorage) SaveLog(ctx context.Context, entry *models.LogEntry) error {
	prepareLog(entry, utils.GenerateID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log (id, image, is_open, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Image, entry.IsOpen, entry.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save log", err.Error())
	}

	return nil
}

// GetLogs returns one page of log entries, newest first
func (s *SQLiteStorage) GetLogs(ctx context.Context, filter models.LogFilter) ([]*models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image, is_open, created_at
		FROM log
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, filter.Limit, filter.Offset())
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query logs", err.Error())
	}
	defer rows.Close()

	return scanLogs(rows)
}

// GetLogCount returns the number of stored log entries
func (s *SQLiteStorage) GetLogCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log").Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count logs", err.Error())
	}
	return count, nil
}

// GetConfig returns the config row, or nil when none was ever saved
func (s *SQLiteStorage) GetConfig(ctx context.Context) (*models.Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, webhook_url FROM config WHERE singleton_key = ?`, models.ConfigSingletonKey)
	return scanConfig(row)
}

// UpsertConfig inserts the config row or updates it in place
func (s *SQLiteStorage) UpsertConfig(ctx context.Context, webhookURL string) (*models.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO config (id, singleton_key, webhook_url) VALUES (?, ?, ?)
		ON CONFLICT (singleton_key) DO UPDATE SET webhook_url = excluded.webhook_url
		RETURNING id, webhook_url
	`, utils.GenerateID(), models.ConfigSingletonKey, webhookURL)

	config, err := scanConfig(row)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Config upsert returned no row", "")
	}
	return config, nil
}

// ResetLogs drops and recreates the log table
func (s *SQLiteStorage) ResetLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS log"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to drop log table", err.Error())
	}
	if _, err := s.db.ExecContext(ctx, sqliteLogTable); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create log table", err.Error())
	}
	s.logger.Warn("Log table reset")
	return nil
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_open THEN 1 ELSE 0 END), 0) FROM log").
		Scan(&stats.TotalLogs, &stats.OpenLogs)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get log count", err.Error())
	}

	var latest time.Time
	err = s.db.QueryRowContext(ctx, "SELECT created_at FROM log ORDER BY created_at DESC LIMIT 1").Scan(&latest)
	if err == nil {
		stats.LatestLog = &latest
	} else if err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get latest log", err.Error())
	}

	config, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	stats.ConfigPresent = config != nil

	// Get database size (SQLite specific)
	err = s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&stats.DatabaseSize)
	if err != nil {
		stats.DatabaseSize = 0
	}

	return stats, nil
}

// GetHealth reports whether the database answers pings
func (s *SQLiteStorage) GetHealth() *StorageHealth {
	return &StorageHealth{
		StorageType: "SQLite",
		Healthy:     s.Ping() == nil,
		Details:     map[string]string{"connection_string": s.config.ConnectionString},
		LastPing:    time.Now(),
	}
}

// scanLogs reads log rows shared by both drivers
func scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	logs := make([]*models.LogEntry, 0)
	for rows.Next() {
		var entry models.LogEntry
		var image sql.NullString

		if err := rows.Scan(&entry.ID, &image, &entry.IsOpen, &entry.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan log", err.Error())
		}
		if image.Valid {
			entry.Image = &image.String
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to iterate logs", err.Error())
	}
	return logs, nil
}

// scanConfig reads a single config row; no row yields nil, nil
func scanConfig(row *sql.Row) (*models.Config, error) {
	var config models.Config
	var webhookURL sql.NullString

	if err := row.Scan(&config.ID, &webhookURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read config", err.Error())
	}
	if webhookURL.Valid {
		config.WebhookURL = &webhookURL.String
	}
	return &config, nil
}
