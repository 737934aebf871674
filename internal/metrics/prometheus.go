package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the gate services
type PrometheusMetrics struct {
	// Gate log metrics
	LogsCreatedTotal   *prometheus.CounterVec
	ConfigUpdatesTotal prometheus.Counter
	UploadsTotal       *prometheus.CounterVec
	UploadBytesTotal   prometheus.Counter

	// Hardware and weather metrics
	HardwareRequestsTotal   *prometheus.CounterVec
	HardwareRequestDuration *prometheus.HistogramVec
	HardwareOnline          prometheus.Gauge
	GateOpen                prometheus.Gauge
	WeatherRequestsTotal    *prometheus.CounterVec
	WeatherTemperature      prometheus.Gauge

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// Relay metrics
	RelayConnectionsActive prometheus.Gauge
	RelayConnectionsTotal  *prometheus.CounterVec
	RelayFramesTotal       *prometheus.CounterVec
	RelayBytesTotal        prometheus.Counter

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// Gate log metrics
		LogsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_logs_created_total",
				Help: "Total number of gate log entries created",
			},
			[]string{"is_open"},
		),

		ConfigUpdatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helmetgate_config_updates_total",
				Help: "Total number of webhook config updates",
			},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_uploads_total",
				Help: "Total number of image uploads",
			},
			[]string{"status"},
		),

		UploadBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helmetgate_upload_bytes_total",
				Help: "Total bytes written by image uploads",
			},
		),

		// Hardware and weather metrics
		HardwareRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_hardware_requests_total",
				Help: "Total number of requests made to the gate controller",
			},
			[]string{"operation", "status"},
		),

		HardwareRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helmetgate_hardware_request_duration_seconds",
				Help:    "Duration of gate controller requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		HardwareOnline: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_hardware_online",
				Help: "Whether the gate controller answered the last status poll (1=online, 0=offline)",
			},
		),

		GateOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_gate_open",
				Help: "Last reported gate state (1=open, 0=closed)",
			},
		),

		WeatherRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_weather_requests_total",
				Help: "Total number of forecast requests",
			},
			[]string{"status"},
		),

		WeatherTemperature: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_weather_temperature_celsius",
				Help: "Last observed temperature at the gate site",
			},
		),

		// Storage metrics
		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helmetgate_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		// Relay metrics
		RelayConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_relay_connections_active",
				Help: "Number of open relay websocket connections",
			},
		),

		RelayConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_relay_connections_total",
				Help: "Total number of relay connection attempts",
			},
			[]string{"status"},
		),

		RelayFramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_relay_frames_total",
				Help: "Total number of frames echoed by the relay",
			},
			[]string{"type"},
		),

		RelayBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "helmetgate_relay_bytes_total",
				Help: "Total payload bytes echoed by the relay",
			},
		),

		// API metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmetgate_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helmetgate_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Application health metrics
		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helmetgate_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "helmetgate_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordLogCreated records a stored gate log
func (m *PrometheusMetrics) RecordLogCreated(isOpen bool) {
	m.LogsCreatedTotal.WithLabelValues(boolLabel(isOpen)).Inc()
}

// RecordConfigUpdate records a webhook config write
func (m *PrometheusMetrics) RecordConfigUpdate() {
	m.ConfigUpdatesTotal.Inc()
}

// RecordUpload records an upload attempt and its size
func (m *PrometheusMetrics) RecordUpload(status string, bytes int64) {
	m.UploadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.UploadBytesTotal.Add(float64(bytes))
	}
}

// RecordHardwareRequest records a gate controller request
func (m *PrometheusMetrics) RecordHardwareRequest(operation, status string, duration time.Duration) {
	m.HardwareRequestsTotal.WithLabelValues(operation, status).Inc()
	m.HardwareRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateHardwareState updates the gate controller gauges
func (m *PrometheusMetrics) UpdateHardwareState(online, gateOpen bool) {
	m.HardwareOnline.Set(boolValue(online))
	m.GateOpen.Set(boolValue(gateOpen))
}

// RecordWeatherRequest records a forecast request
func (m *PrometheusMetrics) RecordWeatherRequest(status string) {
	m.WeatherRequestsTotal.WithLabelValues(status).Inc()
}

// UpdateWeatherTemperature updates the observed temperature
func (m *PrometheusMetrics) UpdateWeatherTemperature(celsius float64) {
	m.WeatherTemperature.Set(celsius)
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordRelayConnection records a relay upgrade attempt
func (m *PrometheusMetrics) RecordRelayConnection(status string) {
	m.RelayConnectionsTotal.WithLabelValues(status).Inc()
}

// RelayConnectionOpened increments the active relay connection gauge
func (m *PrometheusMetrics) RelayConnectionOpened() {
	m.RelayConnectionsActive.Inc()
}

// RelayConnectionClosed decrements the active relay connection gauge
func (m *PrometheusMetrics) RelayConnectionClosed() {
	m.RelayConnectionsActive.Dec()
}

// RecordRelayFrame records one echoed frame
func (m *PrometheusMetrics) RecordRelayFrame(frameType string, bytes int) {
	m.RelayFramesTotal.WithLabelValues(frameType).Inc()
	m.RelayBytesTotal.Add(float64(bytes))
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	m.ComponentHealth.WithLabelValues(component).Set(boolValue(healthy))
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
