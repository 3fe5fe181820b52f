package di

import (
	"canvas-sync/application/ports"
	"canvas-sync/application/services"
	"canvas-sync/infrastructure/config"
	"canvas-sync/interfaces/http/rest"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/observability"

	"go.uber.org/zap"
)

// Container holds the reference sync server's dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Policy       config.PolicyProvider
	Store        ports.StateStore
	ErrorHandler *apperrors.ErrorHandler
	CanvasAPI    *services.CanvasAPIService
	Router       *rest.Router
}
