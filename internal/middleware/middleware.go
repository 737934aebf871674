// File: internal/middleware/middleware.go
package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// StatusRecorder wraps http.ResponseWriter to capture the status code.
// It passes through Flush and Hijack so streaming and websocket upgrades keep working.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int64
}

// NewStatusRecorder wraps w with a default status of 200
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (w *StatusRecorder) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *StatusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.Bytes += int64(n)
	return n, err
}

// Flush implements http.Flusher
func (w *StatusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker
func (w *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.StatusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController
func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RequestID makes sure every request and response carries an X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// client ids end up in log lines, so only well-formed ones are kept
		id := r.Header.Get(RequestIDHeader)
		if !utils.IsValidID(id) {
			id = utils.GenerateID()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logging logs one line per HTTP request
func Logging(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := NewStatusRecorder(w)

			next.ServeHTTP(recorder, r)

			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     recorder.StatusCode,
				"bytes":      recorder.Bytes,
				"duration":   time.Since(start).String(),
				"user_agent": r.UserAgent(),
				"remote_ip":  r.RemoteAddr,
				"request_id": r.Header.Get(RequestIDHeader),
			})
			if recorder.StatusCode >= http.StatusInternalServerError {
				entry.Warn("HTTP request")
			} else {
				entry.Info("HTTP request")
			}
		})
	}
}

// Metrics records HTTP request metrics labelled by route template.
// Register it with mux.Router.Use so the matched route is known.
func Metrics(m *metrics.PrometheusMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := NewStatusRecorder(w)

			next.ServeHTTP(recorder, r)

			m.RecordHTTPRequest(
				r.Method,
				RoutePath(r),
				strconv.Itoa(recorder.StatusCode),
				time.Since(start),
			)
		})
	}
}

// RoutePath extracts the route template from the request
func RoutePath(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}

	template, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}

	return template
}
