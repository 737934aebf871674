// File: internal/hardware/client.go
package hardware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

const (
	statusPath = "status"
	gatePath   = "gate"
	streamPath = "stream.mjpg"

	maxErrorBody = 1024
)

// ClientConfig controls requests to the gate controller
type ClientConfig struct {
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// Client talks to the helmet-detection gate controller behind the webhook URL
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	metrics    *metrics.PrometheusMetrics
	logger     *logrus.Entry
}

// NewClient creates a gate controller client. m may be nil.
func NewClient(config ClientConfig, m *metrics.PrometheusMetrics) *Client {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		metrics: m,
		logger:  utils.ComponentLogger("hardware"),
	}
}

// Endpoint joins base and p, tolerating a trailing slash on base
func Endpoint(base, p string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is not configured", "")
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is invalid", base)
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/"), nil
}

// StreamURL returns the MJPEG stream address for base
func StreamURL(base string) (string, error) {
	return Endpoint(base, streamPath)
}

// Status fetches GET {base}/status
func (c *Client) Status(ctx context.Context, base string) (*models.HardwareStatus, error) {
	endpoint, err := Endpoint(base, statusPath)
	if err != nil {
		return nil, err
	}

	var status models.HardwareStatus
	if err := c.doWithRetry(ctx, "status", http.MethodGet, endpoint, nil, &status); err != nil {
		if c.metrics != nil {
			c.metrics.UpdateHardwareState(false, false)
		}
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.UpdateHardwareState(status.IsOnline, status.GateStatus == "open")
	}
	return &status, nil
}

// Gate sends POST {base}/gate with the requested action. Failures are not retried.
func (c *Client) Gate(ctx context.Context, base string, action models.GateAction) (*models.GateResponse, error) {
	if !action.Valid() {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Invalid gate action", string(action))
	}

	endpoint, err := Endpoint(base, gatePath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(models.GateRequest{Action: action})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal gate request", err.Error())
	}

	// a command is not idempotent, so it gets a single attempt
	var resp models.GateResponse
	start := time.Now()
	err = c.doOnce(ctx, http.MethodPost, endpoint, payload, &resp)
	c.record("gate", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"action":      action,
		"gate_status": resp.GateStatus,
		"success":     resp.Success,
	}).Info("Gate command sent")

	return &resp, nil
}

// doWithRetry performs the request up to RetryAttempts times with a fixed delay
func (c *Client) doWithRetry(ctx context.Context, operation, method, endpoint string, body []byte, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt,
				"max":       c.config.RetryAttempts,
				"delay":     c.config.RetryDelay,
			}).Debug("Retrying hardware request")

			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return utils.NewAppError(utils.ErrCodeConnection, "Hardware request cancelled", ctx.Err().Error())
			}
		}

		start := time.Now()
		lastErr = c.doOnce(ctx, method, endpoint, body, out)
		c.record(operation, lastErr, time.Since(start))
		if lastErr == nil {
			return nil
		}

		if attempt < c.config.RetryAttempts {
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt,
				"error":     lastErr,
			}).Warn("Hardware request failed, retrying")
		}
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to create hardware request", err.Error())
	}
	setRequestHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to reach hardware", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return utils.NewAppError(utils.ErrCodeExternal,
			"Hardware returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to decode hardware response", err.Error())
	}
	return nil
}

func (c *Client) record(operation string, err error, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordHardwareRequest(operation, status, duration)
}

func setRequestHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "helmetgate/1.0")
	req.Header.Set("X-Request-ID", utils.GenerateID())
}
