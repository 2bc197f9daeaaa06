package di

import (
	"context"
	"fmt"
	"time"

	"Pasture/internal/domain/repository"
	"Pasture/internal/handler/api"
	internalrepo "Pasture/internal/repository"
	"Pasture/internal/service/ratelimit"
	"Pasture/internal/usecase"
	"Pasture/pkg/cache"
	pkgch "Pasture/pkg/clickhouse"
	"Pasture/pkg/config"
	xhttp "Pasture/pkg/http"
	pkgkafka "Pasture/pkg/kafka"
	"Pasture/pkg/logger"
	"Pasture/pkg/metrics"
	"Pasture/pkg/queue"
	"Pasture/pkg/server"

	"github.com/segmentio/kafka-go"
)

// Backend groups the repositories of one storage backend.
type Backend struct {
	Accounts     repository.AccountRepository
	Orders       repository.OrderRepository
	Trades       repository.TradeRepository
	Settlements  repository.SettlementRepository
	Holdings     repository.HoldingRepository
	Prices       repository.PriceRepository
	Rates        repository.ExchangeRateRepository
	Assets       repository.AssetRepository
	Universes    repository.UniverseRepository
	Portfolios   repository.PortfolioRepository
	Profiles     repository.ProfileRepository
	Correlations repository.CorrelationRepository
}

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("service", "pasture")), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient connects and applies the schema. It returns nil
// for the memory backend.
func ProvideClickHouseClient(cfg *config.Config, lgr *logger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	lgr.Info("clickhouse ready", logger.String("database", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			lgr.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideBackend selects the repositories for cfg.Backend.Type.
func ProvideBackend(cfg *config.Config, ch *pkgch.Client) *Backend {
	if cfg.Backend.Type == "clickhouse" && ch != nil {
		accounts := internalrepo.NewCHAccountRepository(ch)
		market := internalrepo.NewCHMarketRepository(ch)
		portfolios := internalrepo.NewCHPortfolioRepository(ch)
		return &Backend{
			Accounts:     accounts,
			Orders:       accounts,
			Trades:       accounts,
			Settlements:  accounts,
			Holdings:     accounts,
			Prices:       market,
			Rates:        market,
			Assets:       market,
			Universes:    market,
			Portfolios:   portfolios,
			Profiles:     portfolios,
			Correlations: portfolios,
		}
	}
	store := internalrepo.NewMemoryStore()
	return &Backend{
		Accounts:     store,
		Orders:       store,
		Trades:       store,
		Settlements:  store,
		Holdings:     store,
		Prices:       store,
		Rates:        store,
		Assets:       store,
		Universes:    store,
		Portfolios:   store,
		Profiles:     store,
		Correlations: store,
	}
}

// ProvideCache returns a Redis-backed layered cache, or an in-process one
// when Redis is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Minute))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(time.Minute))
	cleanup := func() {
		_ = lc.Close()
		_ = rc.Close()
	}
	return lc, cleanup, nil
}

// ProvidePriceRepository puts the cache in front of the backend's prices.
func ProvidePriceRepository(b *Backend, c cache.Service, cfg *config.Config, lgr *logger.Logger) *internalrepo.CachedPriceRepository {
	return internalrepo.NewCachedPriceRepository(b.Prices, c, cfg.Redis.PriceCacheTTL, lgr)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher publishes record events to Kafka when a producer exists.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideKafkaConsumer creates the ingest consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, lgr *logger.Logger, m *metrics.Recorder) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(lgr,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
			m.RecordError("ingest:" + topic)
		},
	})
	return consumer, nil
}

// ProvideAccountBatch bounds account fan-out and takes per-account locks.
func ProvideAccountBatch(b *Backend, c cache.Service, m *metrics.Recorder, cfg *config.Config, lgr *logger.Logger) *usecase.AccountBatch {
	return usecase.NewAccountBatch(b.Accounts, cfg.Workers.Accounts, m, lgr,
		usecase.WithAccountLock(c, cfg.Redis.LockTTL))
}

func ProvideSettlementBuilder(b *Backend, pub repository.EventPublisher, m *metrics.Recorder, cfg *config.Config, lgr *logger.Logger) *usecase.SettlementBuilder {
	return usecase.NewSettlementBuilder(b.Trades, b.Settlements, b.Rates, pub, m, cfg.Settlement, lgr)
}

func ProvideHoldingReconstructor(
	b *Backend,
	prices *internalrepo.CachedPriceRepository,
	pub repository.EventPublisher,
	m *metrics.Recorder,
	cfg *config.Config,
	lgr *logger.Logger,
) *usecase.HoldingReconstructor {
	return usecase.NewHoldingReconstructor(b.Orders, b.Holdings, prices, pub, m, cfg.Holding, lgr)
}

func ProvidePortfolioSimulation(
	b *Backend,
	prices *internalrepo.CachedPriceRepository,
	pub repository.EventPublisher,
	m *metrics.Recorder,
	cfg *config.Config,
	lgr *logger.Logger,
) *usecase.PortfolioSimulation {
	return usecase.NewPortfolioSimulation(prices, b.Portfolios, b.Universes, pub, m, cfg.Portfolio, cfg.Analytics, lgr)
}

func ProvideAssetProfiler(
	b *Backend,
	prices *internalrepo.CachedPriceRepository,
	pub repository.EventPublisher,
	m *metrics.Recorder,
	cfg *config.Config,
	lgr *logger.Logger,
) *usecase.AssetProfiler {
	return usecase.NewAssetProfiler(prices, b.Assets, b.Profiles, pub, m, cfg.Profile, cfg.Analytics, lgr)
}

func ProvideCorrelationSnapshotter(
	b *Backend,
	prices *internalrepo.CachedPriceRepository,
	pub repository.EventPublisher,
	m *metrics.Recorder,
	cfg *config.Config,
	lgr *logger.Logger,
) *usecase.CorrelationSnapshotter {
	return usecase.NewCorrelationSnapshotter(prices, b.Assets, b.Correlations, pub, m, cfg.Profile, cfg.Analytics, lgr)
}

func ProvideJobs(
	batch *usecase.AccountBatch,
	settlement *usecase.SettlementBuilder,
	holding *usecase.HoldingReconstructor,
	portfolio *usecase.PortfolioSimulation,
	profiles *usecase.AssetProfiler,
	correlations *usecase.CorrelationSnapshotter,
	m *metrics.Recorder,
	lgr *logger.Logger,
) *usecase.Jobs {
	return usecase.NewJobs(batch, settlement, holding, portfolio, profiles, correlations, m, lgr)
}

// ProvideQueue builds the job queue for cfg.Queue.Driver and registers every job on it.
func ProvideQueue(cfg *config.Config, c cache.Service, jobs *usecase.Jobs, m *metrics.Recorder, lgr *logger.Logger) (queue.Runner, error) {
	qcfg := queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	observe := func(job string, elapsed time.Duration, err error) {
		m.RecordLatency("job:"+job, elapsed.Seconds())
		if err != nil {
			m.RecordError("job:" + job)
		}
	}

	var runner queue.Runner
	switch cfg.Queue.Driver {
	case "redis":
		shared, ok := sharedRedis(c)
		if !ok {
			return nil, fmt.Errorf("queue driver redis needs a redis cache")
		}
		runner = queue.NewRedisQueue(lgr, qcfg, shared.Client(),
			queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
			queue.WithRedisObserver(observe))
	default:
		runner = queue.NewLocalQueue(lgr, qcfg, queue.WithLocalObserver(observe))
	}
	for _, j := range jobs.QueueJobs() {
		runner.RegisterJob(j)
	}
	return runner, nil
}

func sharedRedis(c cache.Service) (*cache.RedisCache, bool) {
	switch v := c.(type) {
	case *cache.RedisCache:
		return v, true
	case *cache.LayeredCache:
		rc, ok := v.Shared().(*cache.RedisCache)
		return rc, ok
	}
	return nil, false
}

func ProvideIngestHandler(cfg *config.Config, q queue.Runner, prices *internalrepo.CachedPriceRepository, m *metrics.Recorder, lgr *logger.Logger) *usecase.IngestHandler {
	return usecase.NewIngestHandler(cfg.Kafka.IngestTopic, q, prices, m, lgr)
}

func ProvideScheduler(cfg *config.Config, q queue.Runner, lgr *logger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(q, cfg.Schedule, lgr)
}

func ProvideAnalysis(b *Backend, prices *internalrepo.CachedPriceRepository, cfg *config.Config, lgr *logger.Logger) *usecase.Analysis {
	return usecase.NewAnalysis(prices, b.Universes, b.Portfolios, cfg.Analytics, lgr)
}

func ProvideAnalysisHandler(cfg *config.Config, lgr *logger.Logger, analysis *usecase.Analysis, q queue.Runner) *api.AnalysisEchoHandler {
	limiter := ratelimit.New(float64(cfg.Server.TriggerBurst), cfg.Server.TriggerPerMinute/60)
	return api.NewAnalysisEchoHandler(lgr, analysis, q).WithJobLimiter(limiter)
}

func ProvideAccountAnalysis(b *Backend, cfg *config.Config, lgr *logger.Logger) *usecase.AccountAnalysis {
	return usecase.NewAccountAnalysis(b.Orders, b.Trades, b.Holdings, b.Rates, cfg.Settlement, lgr)
}

func ProvideAccountHandler(lgr *logger.Logger, accounts *usecase.AccountAnalysis) *api.AccountEchoHandler {
	return api.NewAccountEchoHandler(lgr, accounts)
}

// ProvideHTTPServer returns nil when the API is disabled.
func ProvideHTTPServer(cfg *config.Config, lgr *logger.Logger, h *api.AnalysisEchoHandler, accounts *api.AccountEchoHandler) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	return xhttp.NewServer(lgr, []xhttp.Handler{h, accounts},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Environment != "production"),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	q queue.Runner,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	ingest *usecase.IngestHandler,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, lgr, q, scheduler, consumer, ingest, httpServer)
}
