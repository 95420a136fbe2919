// Package service provides shared HTTP service scaffolding: route
// registration, health/readiness probes, and request statistics.
package service

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/next-hat/nanocl-sub000/infrastructure/httputil"
)

// RouteGroup wraps a *mux.Router so callers register routes without holding
// a reference to the whole daemon router, mirroring how the teacher's
// service package kept route registration separate from the transport.
type RouteGroup struct {
	router *mux.Router
}

// NewRouteGroup creates a RouteGroup bound to router.
func NewRouteGroup(router *mux.Router) *RouteGroup {
	return &RouteGroup{router: router}
}

// HandleFunc registers handler for pattern and returns the *mux.Route so
// callers can chain .Methods(...).
func (rg *RouteGroup) HandleFunc(pattern string, handler http.HandlerFunc) *mux.Route {
	return rg.router.HandleFunc(pattern, handler)
}

// =============================================================================
// Standard Response Types
// =============================================================================

// HealthResponse is the standard response for /health endpoint.
type HealthResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// InfoResponse is the standard response for /info endpoint.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// =============================================================================
// Standard Handlers
// =============================================================================

func (b *BaseService) healthSnapshot() (status string, details map[string]any) {
	status = "healthy"
	if checker, ok := interface{}(b).(HealthChecker); ok {
		status = checker.HealthStatus()
		if status != "healthy" {
			details = checker.HealthDetails()
		}
	}
	return status, details
}

// HealthHandler returns a standardized /health handler for BaseService.
func HealthHandler(b *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, details := b.healthSnapshot()
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    status,
			Service:   b.Name(),
			Version:   b.Version(),
			Timestamp: time.Now().Format(time.RFC3339),
			Details:   details,
		})
	}
}

// ReadinessHandler returns a readiness probe handler suitable for k8s.
func ReadinessHandler(b *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, details := b.healthSnapshot()
		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, HealthResponse{
			Status:    status,
			Service:   b.Name(),
			Version:   b.Version(),
			Timestamp: time.Now().Format(time.RFC3339),
			Details:   details,
		})
	}
}

// InfoHandler returns a standardized /info handler for BaseService,
// including statistics from the registered stats function if any.
func InfoHandler(b *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, InfoResponse{
			Status:     "active",
			Service:    b.Name(),
			Version:    b.Version(),
			Timestamp:  time.Now().Format(time.RFC3339),
			Statistics: b.stats(),
		})
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RouteOptions configures which standard routes to register.
type RouteOptions struct {
	SkipInfo bool // Skip /info registration (for services with custom /info)
}

// RegisterStandardRoutes registers the standard /health, /ready, and /info
// endpoints on router.
func RegisterStandardRoutes(router *mux.Router, b *BaseService, opts RouteOptions) {
	router.HandleFunc("/health", HealthHandler(b)).Methods("GET")
	router.HandleFunc("/ready", ReadinessHandler(b)).Methods("GET")
	if !opts.SkipInfo {
		router.HandleFunc("/info", InfoHandler(b)).Methods("GET")
	}
}
