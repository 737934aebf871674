package server

import (
	"net/http"
	"time"
)

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"uptime":          time.Since(s.startTime).Round(time.Second).String(),
		"metrics_enabled": s.config.EnableMetrics,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detailedHealthHandler returns per-component health; 503 when storage is down
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	storageHealth := s.storage.GetHealth()

	components := map[string]interface{}{
		"storage": storageHealth,
	}
	if s.statusMonitor != nil {
		snap := s.statusMonitor.Snapshot()
		components["status_monitor"] = map[string]interface{}{
			"running":        s.statusMonitor.IsRunning(),
			"hardware_error": snap.HardwareError,
			"weather_error":  snap.WeatherError,
		}
	}

	status, code := "healthy", http.StatusOK
	if !storageHealth.Healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    s.config.Version,
		"components": components,
	})
}

// statsHandler returns storage statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to retrieve storage stats", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":       time.Now().UTC(),
		"storage":         storageStats,
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
		"metrics_enabled": s.config.EnableMetrics,
	})
}
