//go:build wireinject
// +build wireinject

package di

import (
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/config"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Storage and domain services
		ProvideBarStore,
		ProvideOutcomePublisher,
		ProvideMarketSource,
		ProvideCalendarProvider,
		ProvideAnalyzer,

		// Use cases
		ProvideUpdater,
		ProvideResampled,
		ProvideGapRepairHandler,

		// HTTP surface
		ProvideBarsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
