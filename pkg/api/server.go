package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/middleware"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/teams"
)

// Server wires the domain services into an HTTP router
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer builds the router with all routes registered. metrics may
// be nil to skip HTTP instrumentation.
func NewServer(
	planSvc plans.Service,
	teamSvc teams.Service,
	billingSvc billing.Service,
	tokens *auth.TokenStore,
	guard *auth.Guard,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}

	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	)
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Catalog reads stay public
	planHandlers := NewPlanHandlers(planSvc, billingSvc, guard, logger)
	v1.HandleFunc("/plans", planHandlers.ListPlans).Methods("GET")
	v1.HandleFunc("/plans/{id}", planHandlers.GetPlan).Methods("GET")

	authed := v1.NewRoute().Subrouter()
	authed.Use(middleware.NewAuthMiddleware(tokens, false).Handler)

	planHandlers.RegisterRoutes(authed)
	NewTeamHandlers(teamSvc, billingSvc, guard, logger).RegisterRoutes(authed)
	NewSubscriptionHandlers(billingSvc, guard, logger).RegisterRoutes(authed)
	NewTokenHandlers(tokens, guard, logger).RegisterRoutes(authed)

	return s
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
