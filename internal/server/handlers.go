// File: internal/server/handlers.go
package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// statusHandler reports that the API is up
func (s *HTTPServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"isOnline": true})
}

// listLogsHandler returns one page of gate logs, newest first
func (s *HTTPServer) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r, s.config.MaxPageSize)
	if err != nil {
		s.writeError(w, r, "Invalid query parameters", err)
		return
	}

	logs, err := s.storage.GetLogs(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, "Failed to fetch logs", err)
		return
	}

	total, err := s.storage.GetLogCount(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to fetch logs", err)
		return
	}

	s.writeJSON(w, http.StatusOK, models.LogPage{
		Data:       logs,
		Pagination: models.NewPagination(filter, total),
	})
}

// createLogHandler appends a gate log entry
func (s *HTTPServer) createLogHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateLogRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, "Invalid request body", err)
		return
	}

	entry := &models.LogEntry{
		Image:  req.Image,
		IsOpen: *req.IsOpen,
	}
	if err := s.storage.SaveLog(r.Context(), entry); err != nil {
		s.writeError(w, r, "Failed to create log", err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"log_id":  entry.ID,
		"is_open": entry.IsOpen,
	}).Info("Gate log created")

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    entry,
	})
}

// getConfigHandler returns the config row or null
func (s *HTTPServer) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.storage.GetConfig(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to fetch config", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"data": cfg})
}

// upsertConfigHandler creates or updates the single config row
func (s *HTTPServer) upsertConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	err := s.decodeJSON(r, &req)
	if err == nil {
		err = validateWebhookURL(req.WebhookURL)
	}
	if err != nil {
		s.writeError(w, r, "Invalid request body", err)
		return
	}

	cfg, err := s.storage.UpsertConfig(r.Context(), req.WebhookURL)
	if err != nil {
		s.writeError(w, r, "Failed to create/update config", err)
		return
	}

	s.logger.WithField("webhook_url", req.WebhookURL).Info("Config updated")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    cfg,
	})
}

// uploadHandler stores the multipart "file" field under the upload directory
func (s *HTTPServer) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.recordUpload("too_large", 0)
			s.writeErrorStatus(w, r, http.StatusRequestEntityTooLarge, utils.ErrCodeUpload, "Failed to upload file", err)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			s.recordUpload("rejected", 0)
			s.writeError(w, r, "No file provided", validationError("No file provided", err.Error()))
		default:
			s.recordUpload("rejected", 0)
			s.writeError(w, r, "Failed to upload file", validationError("Malformed multipart body", err.Error()))
		}
		return
	}
	defer file.Close()

	saved, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		s.recordUpload("error", 0)
		if utils.ErrorCode(err) == utils.ErrCodeValidation {
			s.writeError(w, r, "No file provided", err)
			return
		}
		s.writeError(w, r, "Failed to upload file", err)
		return
	}
	s.recordUpload("success", saved.Size)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"path":    saved.Path,
	})
}

func (s *HTTPServer) recordUpload(status string, size int64) {
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordUpload(status, size)
	}
}
