package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(
		operation,
		table,
		status,
		time.Since(start),
	)
}

// SaveLog saves a log entry and records metrics
func (s *StorageWithMetrics) SaveLog(ctx context.Context, entry *models.LogEntry) error {
	start := time.Now()
	err := s.Storage.SaveLog(ctx, entry)
	s.record("insert", "log", start, err)
	if err == nil && s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordLogCreated(entry.IsOpen)
	}
	return err
}

// GetLogs gets a page of logs and records metrics
func (s *StorageWithMetrics) GetLogs(ctx context.Context, filter models.LogFilter) ([]*models.LogEntry, error) {
	start := time.Now()
	logs, err := s.Storage.GetLogs(ctx, filter)
	s.record("select", "log", start, err)
	return logs, err
}

// GetLogCount counts logs and records metrics
func (s *StorageWithMetrics) GetLogCount(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := s.Storage.GetLogCount(ctx)
	s.record("count", "log", start, err)
	return count, err
}

// GetConfig reads the config row and records metrics
func (s *StorageWithMetrics) GetConfig(ctx context.Context) (*models.Config, error) {
	start := time.Now()
	config, err := s.Storage.GetConfig(ctx)
	s.record("select", "config", start, err)
	return config, err
}

// UpsertConfig writes the config row and records metrics
func (s *StorageWithMetrics) UpsertConfig(ctx context.Context, webhookURL string) (*models.Config, error) {
	start := time.Now()
	config, err := s.Storage.UpsertConfig(ctx, webhookURL)
	s.record("upsert", "config", start, err)
	if err == nil && s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordConfigUpdate()
	}
	return config, err
}

// ResetLogs resets the log table and records metrics
func (s *StorageWithMetrics) ResetLogs(ctx context.Context) error {
	start := time.Now()
	err := s.Storage.ResetLogs(ctx)
	s.record("reset", "log", start, err)
	return err
}

// GetHealth reports storage health and updates the component gauge
func (s *StorageWithMetrics) GetHealth() *StorageHealth {
	health := s.Storage.GetHealth()
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.Healthy)
	}
	return health
}
