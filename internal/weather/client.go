// File: internal/weather/client.go
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// Variable lists requested from Open-Meteo
const (
	CurrentVariables = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"
	HourlyVariables  = "temperature_2m,relative_humidity_2m,precipitation_probability"
	DailyVariables   = "temperature_2m_max,temperature_2m_min,precipitation_probability_max"
)

// Config selects the forecast location
type Config struct {
	BaseURL        string
	Latitude       float64
	Longitude      float64
	Timezone       string
	RequestTimeout time.Duration
}

// Client fetches forecasts from Open-Meteo
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.PrometheusMetrics
	logger     *logrus.Entry
}

// NewClient creates a forecast client. m may be nil.
func NewClient(config Config, m *metrics.PrometheusMetrics) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		metrics:    m,
		logger:     utils.ComponentLogger("weather"),
	}
}

// ForecastURL builds the request URL for the configured location
func (c *Client) ForecastURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeConfiguration, "Invalid weather base URL", err.Error())
	}

	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(c.config.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.config.Longitude, 'f', -1, 64))
	q.Set("current", CurrentVariables)
	q.Set("hourly", HourlyVariables)
	q.Set("daily", DailyVariables)
	q.Set("timezone", c.config.Timezone)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Forecast fetches the current forecast and labels its weather code
func (c *Client) Forecast(ctx context.Context) (*models.WeatherForecast, error) {
	forecast, err := c.fetch(ctx)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordWeatherRequest(status)
		if err == nil {
			c.metrics.UpdateWeatherTemperature(forecast.Current.Temperature2m)
		}
	}
	if err != nil {
		c.logger.WithError(err).Warn("Weather fetch failed")
		return nil, err
	}
	return forecast, nil
}

func (c *Client) fetch(ctx context.Context) (*models.WeatherForecast, error) {
	endpoint, err := c.ForecastURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to create weather request", err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection, "Failed to reach weather service", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, utils.NewAppError(utils.ErrCodeExternal,
			"Weather service returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var forecast models.WeatherForecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExternal, "Failed to decode weather response", err.Error())
	}
	forecast.Description = Describe(forecast.Current.WeatherCode)

	return &forecast, nil
}
