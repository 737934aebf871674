package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes message with the status and code derived from err.
// Validation details are returned to the caller; other causes are only logged.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	code := utils.ErrorCode(err)
	s.writeErrorStatus(w, r, utils.HTTPStatus(code), code, message, err)
}

func (s *HTTPServer) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	resp := ErrorResponse{
		Error: message,
		Code:  code,
	}

	fields := logrus.Fields{
		"status":     status,
		"code":       code,
		"path":       r.URL.Path,
		"request_id": r.Header.Get("X-Request-ID"),
	}
	if err != nil {
		fields["error"] = err.Error()
		var appErr *utils.AppError
		if code == utils.ErrCodeValidation && errors.As(err, &appErr) {
			resp.Details = appErr.Details
		}
	}

	entry := s.logger.WithFields(fields)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}

	s.writeJSON(w, status, resp)
}

// validationError builds a VALIDATION_ERROR with details
func validationError(message, details string) error {
	return utils.NewAppError(utils.ErrCodeValidation, message, details)
}

func (s *HTTPServer) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeErrorStatus(w, r, http.StatusNotFound, utils.ErrCodeNotFound, "Not found", nil)
}

func (s *HTTPServer) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeErrorStatus(w, r, http.StatusMethodNotAllowed, utils.ErrCodeValidation, "Method not allowed", nil)
}
