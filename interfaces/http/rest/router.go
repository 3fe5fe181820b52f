package rest

import (
	"net/http"

	"canvas-sync/infrastructure/config"
	"canvas-sync/interfaces/http/rest/handlers"
	"canvas-sync/interfaces/http/rest/middleware"
	"canvas-sync/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router of the reference sync
// server
type Router struct {
	canvasHandler *handlers.CanvasHandler
	metrics       *observability.Collector
	cfg           *config.Config
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	canvasHandler *handlers.CanvasHandler,
	metrics *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		canvasHandler: canvasHandler,
		metrics:       metrics,
		cfg:           cfg,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Canvas sync API
	router.Route("/api/canvases/{canvasID}", func(r chi.Router) {
		r.Get("/state", rt.canvasHandler.GetState)
		r.Get("/transactions", rt.canvasHandler.GetTransactions)
		r.Post("/sync", rt.canvasHandler.Sync)
		r.Post("/versions", rt.canvasHandler.CreateVersion)
		r.Get("/snapshot", rt.canvasHandler.GetSnapshot)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
