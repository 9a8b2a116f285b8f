// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// PortfolioServiceInterface answers the analytics endpoints.
type PortfolioServiceInterface interface {
	GetPnL(ctx context.Context, filter models.SnapshotFilter) (*service.PnLResult, error)
	GetTimeline(ctx context.Context, scope types.TimelineScope) ([]models.TimelinePoint, error)
	GetPerformance(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, error)
	GetBreakdown(ctx context.Context) (*models.Breakdown, error)
	GetFlowAdjusted(ctx context.Context, input service.FlowAdjustedInput) (*models.FlowAdjustedReport, error)
	ListCapitalFlows(ctx context.Context) ([]models.CapitalFlow, error)
	AddCapitalFlow(ctx context.Context, flow *models.CapitalFlow) error
}

// FlowServiceInterface answers the flow classification endpoints.
type FlowServiceInterface interface {
	ClassifyAll(ctx context.Context) (*models.ClassificationRun, error)
	GetSummaries(ctx context.Context) ([]models.WalletFlowSummary, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	portfolioService PortfolioServiceInterface
	flowService      FlowServiceInterface
	healthChecks     map[string]HealthCheck
	config           *ServerConfig
	logger           *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance. healthChecks are run by
// /health, keyed by dependency name.
func NewServer(
	config *ServerConfig,
	portfolioService PortfolioServiceInterface,
	flowService FlowServiceInterface,
	healthChecks map[string]HealthCheck,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		portfolioService: portfolioService,
		flowService:      flowService,
		healthChecks:     healthChecks,
		config:           config,
		logger:           logging.GetGlobalLogger().WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters: recovery must wrap everything below logging
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	// preflight requests only need the CORS middleware
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	api := s.router.PathPrefix("/api").Subrouter()

	// Analytics endpoints
	api.HandleFunc("/pnl", s.handleGetPnL).Methods("GET")
	api.HandleFunc("/timeline/{scope}", s.handleGetTimeline).Methods("GET")
	// registered before /performance/{scope} so it is not read as a scope
	api.HandleFunc("/performance/flow-adjusted", s.handleGetFlowAdjusted).Methods("GET")
	api.HandleFunc("/performance/{scope}", s.handleGetPerformance).Methods("GET")
	api.HandleFunc("/breakdown", s.handleGetBreakdown).Methods("GET")

	// Flow endpoints
	api.HandleFunc("/flows/classify", s.handleClassifyFlows).Methods("POST")
	api.HandleFunc("/flows/summary", s.handleGetFlowSummary).Methods("GET")
	api.HandleFunc("/capital-flows", s.handleListCapitalFlows).Methods("GET")
	api.HandleFunc("/capital-flows", s.handleAddCapitalFlow).Methods("POST")
}

// handleHealth reports healthy only when every dependency answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			s.logger.WithError(err).WithField("dependency", name).Warn("health check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "healthy",
		"service": "portfolio-ledger",
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	respondJSON(w, status, body)
}

// Handler returns the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
