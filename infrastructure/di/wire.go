//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"canvas-sync/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvidePolicyProvider,
	ProvideStateStore,
	ProvideErrorHandler,
	ProvideCanvasAPIService,
	ProvideCanvasHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container for the reference
// sync server
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
