//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"versegraph/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideRegistry,
	ProvideMetrics,
	ProvideJWTValidator,
	ProvideIPRateLimiter,
	ProvideUserRateLimiter,
	ProvideScriptureReader,
	ProvideAnnotationStore,
	ProvideVisibilityService,
	ProvideSessionManager,
	ProvideAnnotationService,
	ProvideLimitsWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
