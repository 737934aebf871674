// File: internal/monitor/status.go
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// MinPollInterval is the shortest interval either poller will run at
const MinPollInterval = 5 * time.Second

// HardwareSource fetches the gate controller status
type HardwareSource interface {
	Status(ctx context.Context, base string) (*models.HardwareStatus, error)
}

// WeatherSource fetches the site forecast
type WeatherSource interface {
	Forecast(ctx context.Context) (*models.WeatherForecast, error)
}

// ConfigSource supplies the current webhook configuration
type ConfigSource interface {
	GetConfig(ctx context.Context) (*models.Config, error)
}

// Config holds poller intervals
type Config struct {
	HardwareInterval time.Duration
	WeatherInterval  time.Duration
}

// Snapshot is the latest known state of each polled source
type Snapshot struct {
	Hardware          *models.HardwareStatus  `json:"hardware"`
	HardwareError     string                  `json:"hardwareError,omitempty"`
	HardwareUpdatedAt *time.Time              `json:"hardwareUpdatedAt,omitempty"`
	Weather           *models.WeatherForecast `json:"weather"`
	WeatherError      string                  `json:"weatherError,omitempty"`
	WeatherUpdatedAt  *time.Time              `json:"weatherUpdatedAt,omitempty"`
}

// StatusMonitor polls hardware and weather on independent timers and keeps
// the latest result of each
type StatusMonitor struct {
	config   Config
	hardware HardwareSource
	weather  WeatherSource
	configs  ConfigSource
	logger   *logrus.Entry

	mu       sync.RWMutex
	snapshot Snapshot
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStatusMonitor creates a status monitor. Intervals below MinPollInterval are raised to it.
func NewStatusMonitor(config Config, hardware HardwareSource, weather WeatherSource, configs ConfigSource) *StatusMonitor {
	config.HardwareInterval = floorInterval(config.HardwareInterval)
	config.WeatherInterval = floorInterval(config.WeatherInterval)

	return &StatusMonitor{
		config:   config,
		hardware: hardware,
		weather:  weather,
		configs:  configs,
		logger:   utils.ComponentLogger("status_monitor"),
		stopChan: make(chan struct{}),
	}
}

func floorInterval(d time.Duration) time.Duration {
	if d < MinPollInterval {
		return MinPollInterval
	}
	return d
}

// Intervals returns the effective polling intervals
func (m *StatusMonitor) Intervals() Config {
	return m.config
}

// Start launches both polling loops
func (m *StatusMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Status monitor already running", "")
	}
	m.running = true

	m.wg.Add(2)
	go m.loop(ctx, "hardware", m.config.HardwareInterval, m.RefreshHardware)
	go m.loop(ctx, "weather", m.config.WeatherInterval, m.RefreshWeather)

	m.logger.WithFields(logrus.Fields{
		"hardware_interval": m.config.HardwareInterval,
		"weather_interval":  m.config.WeatherInterval,
	}).Info("Status monitor started")

	return nil
}

// Stop stops both loops and waits for them to exit
func (m *StatusMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()

	m.logger.Info("Status monitor stopped")
	return nil
}

// IsRunning returns whether the loops are running
func (m *StatusMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Snapshot returns a copy of the latest state
func (m *StatusMonitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *StatusMonitor) loop(ctx context.Context, name string, interval time.Duration, refresh func(context.Context) error) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll := func() {
		if err := refresh(ctx); err != nil {
			m.logger.WithFields(logrus.Fields{
				"source": name,
				"error":  err,
			}).Debug("Status poll failed")
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			poll()
		}
	}
}

// RefreshHardware polls the gate controller once and stores the result
func (m *StatusMonitor) RefreshHardware(ctx context.Context) error {
	status, err := m.fetchHardware(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.HardwareUpdatedAt = &now
	if err != nil {
		m.snapshot.Hardware = nil
		m.snapshot.HardwareError = err.Error()
		return err
	}
	m.snapshot.Hardware = status
	m.snapshot.HardwareError = ""
	return nil
}

func (m *StatusMonitor) fetchHardware(ctx context.Context) (*models.HardwareStatus, error) {
	cfg, err := m.configs.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.WebhookURL == nil || *cfg.WebhookURL == "" {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is not configured", "")
	}
	return m.hardware.Status(ctx, *cfg.WebhookURL)
}

// RefreshWeather fetches the forecast once and stores the result.
// A failed fetch keeps the previous forecast.
func (m *StatusMonitor) RefreshWeather(ctx context.Context) error {
	forecast, err := m.weather.Forecast(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.WeatherUpdatedAt = &now
	if err != nil {
		m.snapshot.WeatherError = err.Error()
		return err
	}
	m.snapshot.Weather = forecast
	m.snapshot.WeatherError = ""
	return nil
}
