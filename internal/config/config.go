package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for both the API and the relay
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	// PublicAPIURL is the base URL browsers use to reach the API.
	PublicAPIURL string `mapstructure:"public_api_url"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// ServerConfig contains API server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
	CORSOrigin    string        `mapstructure:"cors_origin"`
	MaxPageSize   int           `mapstructure:"max_page_size"`
}

// UploadsConfig controls where uploaded images are written
type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	URLPrefix    string `mapstructure:"url_prefix"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

// HardwareConfig controls calls to the gate controller behind the webhook URL
type HardwareConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// WeatherConfig contains Open-Meteo forecast parameters
type WeatherConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Latitude       float64       `mapstructure:"latitude"`
	Longitude      float64       `mapstructure:"longitude"`
	Timezone       string        `mapstructure:"timezone"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PollerConfig contains background status polling configuration
type PollerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	HardwareInterval time.Duration `mapstructure:"hardware_interval"`
	WeatherInterval  time.Duration `mapstructure:"weather_interval"`
}

// RelayConfig contains the websocket relay configuration
type RelayConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	CORSOrigin     string        `mapstructure:"cors_origin"`
	StreamPath     string        `mapstructure:"stream_path"`
	AuthTokens     []string      `mapstructure:"auth_tokens"`
	AuthServiceURL string        `mapstructure:"auth_service_url"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("HELMETGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyLegacyEnv(&config)

	return &config, nil
}

// applyLegacyEnv honours the variable names the deployments already use
func applyLegacyEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
		if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
			config.Storage.Type = "postgres"
		}
	}
	if origin, ok := os.LookupEnv("CORS_ORIGIN"); ok {
		config.Server.CORSOrigin = origin
		config.Relay.CORSOrigin = origin
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if apiURL := os.Getenv("NEXT_PUBLIC_API_URL"); apiURL != "" {
		config.App.PublicAPIURL = apiURL
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "helmetgate")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.public_api_url", "http://localhost:3001")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/helmetgate.db")
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "15m")

	// Server defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.max_page_size", 100)

	// Upload defaults
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.url_prefix", "/uploads")
	v.SetDefault("uploads.max_size_bytes", 32<<20)

	// Hardware defaults
	v.SetDefault("hardware.request_timeout", "5s")
	v.SetDefault("hardware.retry_attempts", 3)
	v.SetDefault("hardware.retry_delay", "1s")

	// Weather defaults
	v.SetDefault("weather.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.latitude", 13.73)
	v.SetDefault("weather.longitude", 100.75)
	v.SetDefault("weather.timezone", "Asia/Bangkok")
	v.SetDefault("weather.request_timeout", "10s")

	// Poller defaults
	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.hardware_interval", "5s")
	v.SetDefault("poller.weather_interval", "10s")

	// Relay defaults
	v.SetDefault("relay.port", 8787)
	v.SetDefault("relay.host", "0.0.0.0")
	v.SetDefault("relay.cors_origin", "")
	v.SetDefault("relay.stream_path", "/steam")
	v.SetDefault("relay.auth_tokens", []string{})
	v.SetDefault("relay.auth_service_url", "")
	v.SetDefault("relay.read_limit", 8<<20)
	v.SetDefault("relay.ping_interval", "30s")
	v.SetDefault("relay.enable_metrics", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Type) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Storage.MaxConnections <= 0 {
		return fmt.Errorf("storage max connections must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Server.MaxPageSize <= 0 {
		return fmt.Errorf("server max page size must be positive")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads dir is required")
	}
	if !strings.HasPrefix(c.Uploads.URLPrefix, "/") {
		return fmt.Errorf("uploads url prefix must start with /")
	}
	if c.Hardware.RetryAttempts <= 0 {
		return fmt.Errorf("hardware retry attempts must be positive")
	}
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		return fmt.Errorf("weather latitude %v is out of range", c.Weather.Latitude)
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		return fmt.Errorf("weather longitude %v is out of range", c.Weather.Longitude)
	}
	return nil
}

// ValidateRelay validates the settings the relay process depends on
func (c *Config) ValidateRelay() error {
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		return fmt.Errorf("relay port %d is out of range", c.Relay.Port)
	}
	if !strings.HasPrefix(c.Relay.StreamPath, "/") {
		return fmt.Errorf("relay stream path must start with /")
	}
	if c.Relay.ReadLimit <= 0 {
		return fmt.Errorf("relay read limit must be positive")
	}
	return nil
}
