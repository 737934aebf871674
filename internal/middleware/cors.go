// File: internal/middleware/cors.go
package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig describes the cross-origin policy of a router
type CORSConfig struct {
	AllowedOrigins   []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

// ParseOrigins splits a comma separated origin list. Empty input allows no origins.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimRight(o, "/"))
		}
	}
	return origins
}

// DefaultCORS returns the method and header set both services accept
func DefaultCORS(origins []string, credentials bool) CORSConfig {
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: credentials,
	}
}

// AllowsOrigin reports whether origin may make cross-origin requests
func (c CORSConfig) AllowsOrigin(origin string) bool {
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// allowOriginValue returns the Access-Control-Allow-Origin value for origin, or ""
func (c CORSConfig) allowOriginValue(origin string) string {
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" {
			// A wildcard cannot be combined with credentials
			if c.AllowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin != "" && c.AllowsOrigin(origin) {
		return origin
	}
	return ""
}

// CORS sets the configured CORS headers and answers OPTIONS requests directly
func CORS(c CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(c.AllowMethods, ", ")
	headers := strings.Join(c.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if value := c.allowOriginValue(origin); value != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", value)
				if value != "*" {
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if c.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
