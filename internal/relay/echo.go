// File: internal/relay/echo.go
package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/middleware"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

const writeWait = 10 * time.Second

// streamHandler upgrades the request and echoes every frame back to its sender
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	m := s.promMetrics()

	if err := s.auth.Authenticate(r); err != nil {
		if m != nil {
			m.RecordRelayConnection("unauthorized")
		}
		s.logger.WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		}).Warn("Relay authentication failed")
		writeJSONError(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		if m != nil {
			m.RecordRelayConnection("rejected")
		}
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	if !s.track(conn) {
		if m != nil {
			m.RecordRelayConnection("shutdown")
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer s.untrack(conn)
	if m != nil {
		m.RecordRelayConnection("accepted")
	}

	logger := s.logger.WithFields(logrus.Fields{
		"remote_addr": r.RemoteAddr,
		"request_id":  r.Header.Get(middleware.RequestIDHeader),
	})
	logger.WithField("active_connections", s.ActiveConnections()).Info("Relay client connected")

	frames := s.echo(conn, m, logger)
	logger.WithField("frames", frames).Info("Relay client disconnected")
}

// echo runs the read loop until the peer goes away and returns the number of echoed frames
func (s *Server) echo(conn *websocket.Conn, m *metrics.PrometheusMetrics, logger *logrus.Entry) int {
	if s.config.ReadLimit > 0 {
		conn.SetReadLimit(s.config.ReadLimit)
	}

	stop := make(chan struct{})
	defer close(stop)

	if s.config.PingInterval > 0 {
		pongWait := s.config.PingInterval * 2
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go s.keepalive(conn, stop, logger)
	}

	frames := 0
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.WithError(err).Warn("Relay read failed")
			}
			return frames
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(messageType, payload); err != nil {
			logger.WithError(err).Warn("Relay write failed")
			return frames
		}

		frames++
		if m != nil {
			m.RecordRelayFrame(frameType(messageType), len(payload))
		}
	}
}

// keepalive pings the peer until stop is closed
func (s *Server) keepalive(conn *websocket.Conn, stop <-chan struct{}, logger *logrus.Entry) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.WithError(err).Debug("Relay ping failed")
				return
			}
		}
	}
}

// track registers conn; it refuses once Stop has begun
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	if m := s.promMetrics(); m != nil {
		m.RelayConnectionOpened()
	}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	conn.Close()
	if m := s.promMetrics(); m != nil {
		m.RelayConnectionClosed()
	}
	s.wg.Done()
}

// closeAll sends a going-away close frame to every open connection
func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}
}

func (s *Server) promMetrics() *metrics.PrometheusMetrics {
	if s.metricsManager == nil {
		return nil
	}
	return s.metricsManager.GetPrometheusMetrics()
}

func frameType(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "other"
	}
}
