//go:build wireinject
// +build wireinject

package di

import (
	"ZoneDesk/pkg/config"
	"ZoneDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStorage,
		ProvideBarPublisher,
		ProvideHistory,
		ProvideMarketStream,

		// Bar pipeline
		ProvideBarStore,
		ProvideStreamHub,
		ProvidePipeline,
		ProvideBarProcessor,
		ProvideArchiveSink,
		ProvideIngestor,
		ProvideSnapshotUseCase,

		// Analytics
		ProvideZoneEngine,
		ProvideFibEngine,
		ProvideReactionEngine,
		ProvideVolumeEngine,
		ProvideVolumeSource,
		ProvideScorer,
		ProvideConfluenceUseCase,
		ProvideResponseCache,

		// HTTP
		ProvideHandlers,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
