package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage").WithField("driver", "postgres"),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	p.logger.Info("Starting database migrations")

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	p.logger.Info("Database migrations completed")
	return nil
}

// SaveLog appends a log entry
func (p *PostgreSQLStorage) SaveLog(ctx context.Context, entry *models.LogEntry) error {
	prepareLog(entry, utils.GenerateID)

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO "log" (id, image, is_open, created_at) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.Image, entry.IsOpen, entry.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save log", err.Error())
	}

	return nil
}

// GetLogs returns one page of log entries, newest first
func (p *PostgreSQLStorage) GetLogs(ctx context.Context, filter models.LogFilter) ([]*models.LogEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, image, is_open, created_at
		FROM "log"
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, filter.Limit, filter.Offset())
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query logs", err.Error())
	}
	defer rows.Close()

	return scanLogs(rows)
}

// GetLogCount returns the number of stored log entries
func (p *PostgreSQLStorage) GetLogCount(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "log"`).Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count logs", err.Error())
	}
	return count, nil
}

// GetConfig returns the config row, or nil when none was ever saved
func (p *PostgreSQLStorage) GetConfig(ctx context.Context) (*models.Config, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id::text, webhook_url FROM "config" WHERE singleton_key = $1`, models.ConfigSingletonKey)
	return scanConfig(row)
}

// UpsertConfig inserts the config row or updates it in place
func (p *PostgreSQLStorage) UpsertConfig(ctx context.Context, webhookURL string) (*models.Config, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO "config" (id, singleton_key, webhook_url) VALUES ($1, $2, $3)
		ON CONFLICT (singleton_key) DO UPDATE SET webhook_url = EXCLUDED.webhook_url
		RETURNING id::text, webhook_url
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
func (p *PostgreSQLStorage) ResetLogs(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS "log" CASCADE`); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to drop log table", err.Error())
	}
	if _, err := tx.ExecContext(ctx, postgresLogTable); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create log table", err.Error())
	}
	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit log reset", err.Error())
	}

	p.logger.Warn("Log table reset")
	return nil
}

// GetStorageStats returns storage statistics
func (p *PostgreSQLStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_open) FROM "log"`).
		Scan(&stats.TotalLogs, &stats.OpenLogs)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get log count", err.Error())
	}

	var latest time.Time
	err = p.db.QueryRowContext(ctx, `SELECT created_at FROM "log" ORDER BY created_at DESC LIMIT 1`).Scan(&latest)
	if err == nil {
		latest = latest.UTC()
		stats.LatestLog = &latest
	} else if err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get latest log", err.Error())
	}

	config, err := p.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	stats.ConfigPresent = config != nil

	err = p.db.QueryRowContext(ctx, "SELECT pg_database_size(current_database())").Scan(&stats.DatabaseSize)
	if err != nil {
		stats.DatabaseSize = 0
	}

	return stats, nil
}

// GetHealth reports whether the database answers pings
func (p *PostgreSQLStorage) GetHealth() *StorageHealth {
	return &StorageHealth{
		StorageType: "PostgreSQL",
		Healthy:     p.Ping() == nil,
		LastPing:    time.Now(),
	}
}
