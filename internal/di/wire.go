//go:build wireinject
// +build wireinject

package di

import (
	"PriceProbe/pkg/config"
	"PriceProbe/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Domain services
		ProvideInstruments,
		ProvideFetcher,
		ProvideFallback,
		ProvideWindowTracker,
		ProvideClassifier,

		// Repositories
		ProvideSink,
		ProvideSnapshotCache,
		ProvideSnapshotStore,

		// Use cases
		ProvideDeliveryChannel,
		ProvideAggregator,

		// Transport
		ProvideStatusHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
