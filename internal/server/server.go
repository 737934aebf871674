// File: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/middleware"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/internal/monitor"
	"github.com/smartdevs17/helmetgate/internal/storage"
	"github.com/smartdevs17/helmetgate/internal/uploads"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `json:"port"`
	Host           string        `json:"host"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	EnableMetrics  bool          `json:"enable_metrics"`
	EnableHealth   bool          `json:"enable_health"`
	CORSOrigins    []string      `json:"cors_origins"`
	MaxPageSize    int           `json:"max_page_size"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	Version        string        `json:"version"`
}

// HardwareClient controls the gate controller
type HardwareClient interface {
	Status(ctx context.Context, base string) (*models.HardwareStatus, error)
	Gate(ctx context.Context, base string, action models.GateAction) (*models.GateResponse, error)
}

// WeatherClient fetches the site forecast
type WeatherClient interface {
	Forecast(ctx context.Context) (*models.WeatherForecast, error)
}

// Dependencies are the components the API serves. Only Storage and Uploads are required.
type Dependencies struct {
	Storage        storage.Storage
	Uploads        *uploads.Store
	Hardware       HardwareClient
	Weather        WeatherClient
	StatusMonitor  *monitor.StatusMonitor
	MetricsManager *metrics.Manager
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	handler        http.Handler
	storage        storage.Storage
	uploads        *uploads.Store
	hardware       HardwareClient
	weather        WeatherClient
	statusMonitor  *monitor.StatusMonitor
	metricsManager *metrics.Manager
	validate       *validator.Validate
	logger         *logrus.Entry
	startTime      time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(config *ServerConfig, deps Dependencies) (*HTTPServer, error) {
	if deps.Storage == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Storage is required", "")
	}
	if deps.Uploads == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Upload store is required", "")
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 100
	}

	server := &HTTPServer{
		config:         config,
		storage:        deps.Storage,
		uploads:        deps.Uploads,
		hardware:       deps.Hardware,
		weather:        deps.Weather,
		statusMonitor:  deps.StatusMonitor,
		metricsManager: deps.MetricsManager,
		validate:       validator.New(),
		logger:         utils.ComponentLogger("api"),
		startTime:      time.Now(),
		stopChan:       make(chan struct{}),
	}

	// Setup router
	server.setupRouter()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port)),
		Handler:      server.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()
	s.router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowedHandler)

	if s.metricsManager != nil {
		s.router.Use(middleware.Metrics(s.metricsManager.GetPrometheusMetrics()))
	}

	// Gate API
	s.router.HandleFunc("/api/status", s.statusHandler).Methods("GET")
	s.router.HandleFunc("/logs", s.listLogsHandler).Methods("GET")
	s.router.HandleFunc("/logs", s.createLogHandler).Methods("POST")
	s.router.HandleFunc("/config", s.getConfigHandler).Methods("GET")
	s.router.HandleFunc("/config", s.upsertConfigHandler).Methods("POST")
	s.router.HandleFunc("/upload", s.uploadHandler).Methods("POST")

	// Dashboard endpoints
	s.router.HandleFunc("/api/hardware/status", s.hardwareStatusHandler).Methods("GET")
	s.router.HandleFunc("/api/hardware/gate", s.gateHandler).Methods("POST")
	s.router.HandleFunc("/api/hardware/stream", s.streamHandler).Methods("GET")
	s.router.HandleFunc("/api/weather", s.weatherHandler).Methods("GET")
	s.router.HandleFunc("/api/dashboard", s.dashboardHandler).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	// Metrics endpoint
	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler()).Methods("GET")
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Uploaded images
	prefix := s.uploads.URLPrefix()
	s.router.PathPrefix(prefix + "/").
		Handler(http.StripPrefix(prefix, s.uploads.Handler())).
		Methods("GET", "HEAD")

	// CORS, request ids and access logs wrap the router so they also see
	// preflights and unmatched routes
	var handler http.Handler = s.router
	handler = middleware.CORS(middleware.DefaultCORS(s.config.CORSOrigins, false))(handler)
	handler = middleware.Logging(s.logger)(handler)
	s.handler = middleware.RequestID(handler)
}

// Handler returns the fully wrapped HTTP handler
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Update system and component metrics so they appear on first scrape
	if s.metricsManager != nil {
		s.updateSystemMetrics()
		go s.systemMetricsUpdater()
	}

	// Create a channel to receive startup errors
	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Give the server a moment to start and check for immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *HTTPServer) updateSystemMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	health := s.storage.GetHealth()
	s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.Healthy)
	if s.statusMonitor != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("status_monitor", s.statusMonitor.IsRunning())
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.updateSystemMetrics()
		}
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
