// File: cmd/gateapi/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/helmetgate/internal/config"
	"github.com/smartdevs17/helmetgate/internal/hardware"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/middleware"
	"github.com/smartdevs17/helmetgate/internal/monitor"
	"github.com/smartdevs17/helmetgate/internal/server"
	"github.com/smartdevs17/helmetgate/internal/storage"
	"github.com/smartdevs17/helmetgate/internal/uploads"
	"github.com/smartdevs17/helmetgate/internal/weather"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires the gate API components together
type Application struct {
	config        *config.Config
	logger        *logrus.Entry
	metrics       *metrics.Manager
	storage       storage.Storage
	uploads       *uploads.Store
	hardware      *hardware.Client
	weather       *weather.Client
	statusMonitor *monitor.StatusMonitor
	server        *server.HTTPServer
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:  cfg,
		metrics: metrics.NewManager(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := initLogger(cfg); err != nil {
		cancel()
		return nil, err
	}
	app.logger = utils.ComponentLogger("gateapi")

	if err := app.initializeComponents(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeUploads(); err != nil {
		return fmt.Errorf("failed to initialize uploads: %w", err)
	}

	app.initializeClients()
	app.initializeMonitor()

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage connects and migrates the database
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	store, err := storage.Open(&app.config.Storage)
	if err != nil {
		return err
	}
	app.storage = storage.NewStorageWithMetrics(store, app.metrics)

	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// initializeUploads prepares the upload directory
func (app *Application) initializeUploads() error {
	app.uploads = uploads.NewOSStore(app.config.Uploads.Dir, app.config.Uploads.URLPrefix)
	if err := app.uploads.Init(); err != nil {
		return err
	}

	app.logger.WithField("dir", app.config.Uploads.Dir).Info("Upload store initialized")
	return nil
}

// initializeClients creates the gate controller and weather clients
func (app *Application) initializeClients() {
	m := app.metrics.GetPrometheusMetrics()

	app.hardware = hardware.NewClient(hardware.ClientConfig{
		RequestTimeout: app.config.Hardware.RequestTimeout,
		RetryAttempts:  app.config.Hardware.RetryAttempts,
		RetryDelay:     app.config.Hardware.RetryDelay,
	}, m)

	app.weather = weather.NewClient(weather.Config{
		BaseURL:        app.config.Weather.BaseURL,
		Latitude:       app.config.Weather.Latitude,
		Longitude:      app.config.Weather.Longitude,
		Timezone:       app.config.Weather.Timezone,
		RequestTimeout: app.config.Weather.RequestTimeout,
	}, m)
}

// initializeMonitor creates the background status poller when enabled
func (app *Application) initializeMonitor() {
	if !app.config.Poller.Enabled {
		app.logger.Info("Status poller disabled")
		return
	}

	app.statusMonitor = monitor.NewStatusMonitor(monitor.Config{
		HardwareInterval: app.config.Poller.HardwareInterval,
		WeatherInterval:  app.config.Poller.WeatherInterval,
	}, app.hardware, app.weather, app.storage)
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	serverCfg := &server.ServerConfig{
		Port:           app.config.Server.Port,
		Host:           app.config.Server.Host,
		ReadTimeout:    app.config.Server.ReadTimeout,
		WriteTimeout:   app.config.Server.WriteTimeout,
		EnableMetrics:  app.config.Server.EnableMetrics,
		EnableHealth:   app.config.Server.EnableHealth,
		CORSOrigins:    middleware.ParseOrigins(app.config.Server.CORSOrigin),
		MaxPageSize:    app.config.Server.MaxPageSize,
		MaxUploadBytes: app.config.Uploads.MaxSizeBytes,
		Version:        AppVersion,
	}

	var err error
	app.server, err = server.NewHTTPServer(serverCfg, server.Dependencies{
		Storage:        app.storage,
		Uploads:        app.uploads,
		Hardware:       app.hardware,
		Weather:        app.weather,
		StatusMonitor:  app.statusMonitor,
		MetricsManager: app.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting helmet gate API")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.statusMonitor != nil {
		if err := app.statusMonitor.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start status monitor: %w", err)
		}
		// intervals below the floor were clamped
		intervals := app.statusMonitor.Intervals()
		app.logger.WithFields(logrus.Fields{
			"hardware_interval": intervals.HardwareInterval,
			"weather_interval":  intervals.WeatherInterval,
		}).Info("Status poller running")
	}

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"storage":        app.config.Storage.Type,
		"poller":         app.statusMonitor != nil,
	}).Info("Helmet gate API started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	if app.logger != nil {
		app.logger.Info("Stopping helmet gate API")
	}

	app.cancel()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.server.Stop(ctx); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.statusMonitor != nil && app.statusMonitor.IsRunning() {
		if err := app.statusMonitor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop status monitor")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	if app.logger != nil {
		app.logger.Info("Helmet gate API stopped")
	}
	return nil
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gateapi",
	Short:   "Helmet detection gate API",
	Long:    `REST API for the helmet detection gate: access logs, webhook configuration, image uploads and the operator dashboard.`,
	Version: AppVersion,
	RunE:    runServer,
}

// serveCmd is an explicit alias for the root command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServer,
}

// runServer runs the API until an interrupt or SIGTERM arrives
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	return app.Stop()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Helmet Gate API %s\n", AppVersion)
	},
}

// loadConfig loads configuration and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool("debug") {
		cfg.App.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	logCfg := cfg.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resetLogsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
