// File: internal/relay/server.go
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/middleware"
	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// Config holds relay server configuration
type Config struct {
	Host           string
	Port           int
	StreamPath     string
	CORSOrigins    []string
	AuthServiceURL string
	ReadLimit      int64
	PingInterval   time.Duration
	EnableMetrics  bool
}

// Server is the HTTP and websocket echo relay
type Server struct {
	config         *Config
	server         *http.Server
	router         *mux.Router
	handler        http.Handler
	cors           middleware.CORSConfig
	upgrader       websocket.Upgrader
	auth           Authenticator
	authHandler    http.Handler
	metricsManager *metrics.Manager
	logger         *logrus.Entry

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	stopping bool
	wg       sync.WaitGroup
}

// NewServer creates a relay server. A nil auth accepts all upgrades.
func NewServer(config *Config, auth Authenticator, metricsManager *metrics.Manager) (*Server, error) {
	if config.StreamPath == "" || !strings.HasPrefix(config.StreamPath, "/") {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Stream path must start with /", config.StreamPath)
	}
	if auth == nil {
		auth = AllowAll{}
	}

	s := &Server{
		config:         config,
		cors:           middleware.DefaultCORS(config.CORSOrigins, true),
		auth:           auth,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("relay"),
		conns:          make(map[*websocket.Conn]struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	authHandler, err := s.newAuthHandler(config.AuthServiceURL)
	if err != nil {
		return nil, err
	}
	s.authHandler = authHandler

	s.setupRouter()

	s.server = &http.Server{
		Addr:    net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port)),
		Handler: s.handler,
	}

	return s, nil
}

// setupRouter sets up the relay routes
func (s *Server) setupRouter() {
	s.router = mux.NewRouter()
	if s.metricsManager != nil {
		s.router.Use(middleware.Metrics(s.metricsManager.GetPrometheusMetrics()))
	}

	s.router.HandleFunc("/", s.rootHandler).Methods("GET")
	s.router.PathPrefix("/api/auth/").Handler(s.authHandler).Methods("GET", "POST")
	s.router.HandleFunc(s.config.StreamPath, s.streamHandler).Methods("GET")

	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler()).Methods("GET")
	}

	var handler http.Handler = s.router
	handler = middleware.CORS(s.cors)(handler)
	handler = middleware.Logging(s.logger)(handler)
	s.handler = middleware.RequestID(handler)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the relay server
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":     s.server.Addr,
		"stream_path": s.config.StreamPath,
	}).Info("Starting relay server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Relay server error")
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start relay server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops accepting requests and closes open websocket connections
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	active := len(s.conns)
	s.mu.Unlock()

	s.logger.WithField("open_connections", active).Info("Stopping relay server")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.closeAll()
	s.wg.Wait()
	return err
}

// ActiveConnections returns the number of open websocket connections
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// checkOrigin allows non-browser clients, same-host pages and configured origins
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return s.cors.AllowsOrigin(origin)
}

// newAuthHandler proxies /api/auth/* to the auth service, or answers 501 when none is set
func (s *Server) newAuthHandler(rawURL string) (http.Handler, error) {
	if rawURL == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, http.StatusNotImplemented, utils.ErrCodeNotImplemented, "Auth service is not configured")
		}), nil
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Invalid auth service URL", rawURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.WithError(err).Warn("Auth service unreachable")
			writeJSONError(w, http.StatusBadGateway, utils.ErrCodeExternal, "Auth service unreachable")
		},
	}, nil
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
