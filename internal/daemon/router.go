// Package daemon implements the domain API surface (spec.md §4.8): an HTTP
// router exposing CRUD/lifecycle verbs over namespaces, cargoes, vms, jobs,
// resources, secrets, processes and events, plus a websocket vm attach
// endpoint and a Prometheus /metrics endpoint, the way the teacher's
// infrastructure/service package wires a BaseService's standard routes into
// a gorilla/mux router.
package daemon

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/next-hat/nanocl-sub000/infrastructure/metrics"
	"github.com/next-hat/nanocl-sub000/infrastructure/middleware"
	"github.com/next-hat/nanocl-sub000/infrastructure/service"
	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/instance"
	"github.com/next-hat/nanocl-sub000/internal/statefile"
	"github.com/next-hat/nanocl-sub000/internal/store"
)

// apiVersion is the current major.minor.patch prefix every domain route is
// mounted under (spec.md §4.8: "/v<major.minor.patch>").
const apiVersion = "0.16.0"

// Server bundles the router and its dependencies.
type Server struct {
	Router  *mux.Router
	base    *service.BaseService
	store   store.Store
	manager *instance.Manager
	bus     *eventbus.Bus
	apply   *statefile.Engine
	log     *logging.Logger
	metrics *metrics.Metrics
}

// Deps is everything the daemon HTTP surface is built from; every field is
// constructed and wired by cmd/nanocld's boot sequence.
type Deps struct {
	Store     store.Store
	Manager   *instance.Manager
	Bus       *eventbus.Bus
	Apply     *statefile.Engine
	Log       *logging.Logger
	Metrics   *metrics.Metrics
	CORS      *middleware.CORSConfig
	NodeAuth  *middleware.NodeAuthMiddleware // nil disables node-to-node auth (single-node mode)
}

// NewServer builds the router and registers every route.
func NewServer(deps Deps) *Server {
	s := &Server{
		Router:  mux.NewRouter(),
		base:    service.NewBaseService("nanocld", apiVersion),
		store:   deps.Store,
		manager: deps.Manager,
		bus:     deps.Bus,
		apply:   deps.Apply,
		log:     deps.Log,
		metrics: deps.Metrics,
	}

	s.Router.Use(middleware.NewRecoveryMiddleware(s.log).Handler)
	s.Router.Use(middleware.LoggingMiddleware(s.log))
	s.Router.Use(middleware.NewCORSMiddleware(deps.CORS).Handler)
	if s.metrics != nil {
		s.Router.Use(middleware.MetricsMiddleware("nanocld", s.metrics))
	}
	if deps.NodeAuth != nil {
		s.Router.Use(deps.NodeAuth.Handler)
	}

	service.RegisterStandardRoutes(s.Router, s.base, service.RouteOptions{})
	if s.metrics != nil {
		s.Router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.Router.PathPrefix("/v" + apiVersion).Subrouter()
	s.registerNamespaceRoutes(api)
	s.registerCargoRoutes(api)
	s.registerVmRoutes(api)
	s.registerJobRoutes(api)
	s.registerResourceRoutes(api)
	s.registerSecretRoutes(api)
	s.registerProcessRoutes(api)
	s.registerEventRoutes(api)
	s.registerStateRoutes(api)

	return s
}
