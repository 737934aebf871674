// File: internal/server/dashboard.go
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/smartdevs17/helmetgate/internal/hardware"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/internal/monitor"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// DashboardResponse aggregates everything the gate dashboard shows
type DashboardResponse struct {
	IsOnline bool `json:"isOnline"`
	monitor.Snapshot
}

// webhookBase reads the hardware base URL from the stored config
func (s *HTTPServer) webhookBase(ctx context.Context) (string, error) {
	cfg, err := s.storage.GetConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg == nil || cfg.WebhookURL == nil || *cfg.WebhookURL == "" {
		return "", utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is not configured", "")
	}
	return *cfg.WebhookURL, nil
}

// hardwareStatusHandler proxies GET {webhook}/status
func (s *HTTPServer) hardwareStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.fetchHardwareStatus(r.Context())
	if err != nil {
		s.writeError(w, r, hardwareMessage(err, "Failed to fetch hardware status"), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": status})
}

func (s *HTTPServer) fetchHardwareStatus(ctx context.Context) (*models.HardwareStatus, error) {
	if s.hardware == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotImplemented, "Hardware client is not enabled", "")
	}
	base, err := s.webhookBase(ctx)
	if err != nil {
		return nil, err
	}
	return s.hardware.Status(ctx, base)
}

// gateHandler forwards an open or close command to the gate controller
func (s *HTTPServer) gateHandler(w http.ResponseWriter, r *http.Request) {
	var req GateCommandRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "Invalid request body", err)
		return
	}

	if s.hardware == nil {
		s.writeError(w, r, "Hardware client is not enabled",
			utils.NewAppError(utils.ErrCodeNotImplemented, "Hardware client is not enabled", ""))
		return
	}

	base, err := s.webhookBase(r.Context())
	if err != nil {
		s.writeError(w, r, hardwareMessage(err, "Failed to control gate"), err)
		return
	}

	resp, err := s.hardware.Gate(r.Context(), base, models.GateAction(req.Action))
	if err != nil {
		s.writeError(w, r, hardwareMessage(err, "Failed to control gate"), err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": resp.Success,
		"data":    resp,
	})
}

// streamHandler relays the MJPEG camera stream byte for byte
func (s *HTTPServer) streamHandler(w http.ResponseWriter, r *http.Request) {
	base, err := s.webhookBase(r.Context())
	if err != nil {
		s.writeError(w, r, hardwareMessage(err, "Failed to open stream"), err)
		return
	}

	raw, err := hardware.StreamURL(base)
	if err != nil {
		s.writeError(w, r, hardwareMessage(err, "Failed to open stream"), err)
		return
	}
	target, err := url.Parse(raw)
	if err != nil {
		s.writeError(w, r, "Failed to open stream",
			utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is invalid", err.Error()))
		return
	}

	// Shutdown does not cancel in-flight requests and a stream never goes idle
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	r = r.WithContext(ctx)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			out := *target
			pr.Out.URL = &out
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.writeError(w, r, "Failed to open stream",
				utils.NewAppError(utils.ErrCodeConnection, "Camera stream unreachable", err.Error()))
		},
	}
	proxy.ServeHTTP(w, r)
}

// weatherHandler serves the latest forecast, fetching one if none is cached
func (s *HTTPServer) weatherHandler(w http.ResponseWriter, r *http.Request) {
	if s.statusMonitor != nil {
		if snap := s.statusMonitor.Snapshot(); snap.Weather != nil {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"data":      snap.Weather,
				"updatedAt": snap.WeatherUpdatedAt,
			})
			return
		}
	}

	if s.weather == nil {
		s.writeError(w, r, "Weather is not enabled",
			utils.NewAppError(utils.ErrCodeNotImplemented, "Weather client is not enabled", ""))
		return
	}

	forecast, err := s.weather.Forecast(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to fetch weather", err)
		return
	}

	now := time.Now().UTC()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":      forecast,
		"updatedAt": now,
	})
}

// dashboardHandler returns server, hardware and weather state in one call.
// Source failures are reported inline rather than failing the request.
func (s *HTTPServer) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	resp := DashboardResponse{IsOnline: true}

	if s.statusMonitor != nil && s.statusMonitor.IsRunning() {
		resp.Snapshot = s.statusMonitor.Snapshot()
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	now := time.Now().UTC()
	status, err := s.fetchHardwareStatus(r.Context())
	resp.HardwareUpdatedAt = &now
	if err != nil {
		resp.HardwareError = err.Error()
	} else {
		resp.Hardware = status
	}

	if s.weather != nil {
		forecast, err := s.weather.Forecast(r.Context())
		resp.WeatherUpdatedAt = &now
		if err != nil {
			resp.WeatherError = err.Error()
		} else {
			resp.Weather = forecast
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// hardwareMessage keeps the configuration message visible to callers
func hardwareMessage(err error, fallback string) string {
	if utils.ErrorCode(err) == utils.ErrCodeConfiguration {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return appErr.Message
		}
	}
	return fallback
}
