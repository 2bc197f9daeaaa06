//go:build wireinject
// +build wireinject

package di

import (
	"Pasture/internal/usecase"
	"Pasture/pkg/config"
	"Pasture/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideCache,
	ProvideKafkaProducer,

	// Repositories
	ProvideBackend,
	ProvidePriceRepository,
	ProvideEventPublisher,

	// Use cases
	ProvideAccountBatch,
	ProvideSettlementBuilder,
	ProvideHoldingReconstructor,
	ProvidePortfolioSimulation,
	ProvideAssetProfiler,
	ProvideCorrelationSnapshotter,
	ProvideJobs,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideQueue,
		ProvideKafkaConsumer,
		ProvideIngestHandler,
		ProvideScheduler,
		ProvideAnalysis,
		ProvideAnalysisHandler,
		ProvideAccountAnalysis,
		ProvideAccountHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeJobs wires the job runner alone, for one-shot CLI runs.
func InitializeJobs(cfg *config.Config) (*usecase.Jobs, func(), error) {
	wire.Build(coreSet)
	return nil, nil, nil
}
