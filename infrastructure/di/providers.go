package di

import (
	"canvas-sync/application/ports"
	"canvas-sync/application/services"
	"canvas-sync/infrastructure/config"
	"canvas-sync/infrastructure/persistence/sqlite"
	"canvas-sync/interfaces/http/rest"
	"canvas-sync/interfaces/http/rest/handlers"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/observability"

	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("canvas_sync")
}

// ProvidePolicyProvider creates the sync policy source, hot-reloaded from
// the policy file when one is configured
func ProvidePolicyProvider(cfg *config.Config, logger *zap.Logger) (config.PolicyProvider, func(), error) {
	return config.NewPolicyProvider(cfg, logger)
}

// ProvideStateStore creates the durable canvas state store
func ProvideStateStore(cfg *config.Config, metrics *observability.Collector) (ports.StateStore, func(), error) {
	store, err := sqlite.NewStateStore(cfg.StorePath, metrics)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideCanvasAPIService creates the server-side canvas service
func ProvideCanvasAPIService(store ports.StateStore, metrics *observability.Collector, logger *zap.Logger) *services.CanvasAPIService {
	return services.NewCanvasAPIService(store, metrics, logger)
}

// ProvideCanvasHandler creates the canvas HTTP handler
func ProvideCanvasHandler(service *services.CanvasAPIService, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *handlers.CanvasHandler {
	return handlers.NewCanvasHandler(service, errorHandler, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(canvasHandler *handlers.CanvasHandler, metrics *observability.Collector, cfg *config.Config, logger *zap.Logger) *rest.Router {
	return rest.NewRouter(canvasHandler, metrics, cfg, logger)
}
