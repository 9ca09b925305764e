package di

import (
	"context"
	"fmt"
	"time"

	"ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/handler/api"
	mid "ZoneDesk/internal/middleware"
	internalrepo "ZoneDesk/internal/repository"
	icache "ZoneDesk/internal/service/cache"
	"ZoneDesk/internal/service/history"
	"ZoneDesk/internal/service/polygon"
	"ZoneDesk/internal/services/analytics"
	"ZoneDesk/internal/services/bars"
	"ZoneDesk/internal/services/confluence"
	"ZoneDesk/internal/services/engines"
	"ZoneDesk/internal/usecase"
	pkgch "ZoneDesk/pkg/clickhouse"
	"ZoneDesk/pkg/config"
	xhttp "ZoneDesk/pkg/http"
	pkgkafka "ZoneDesk/pkg/kafka"
	applogger "ZoneDesk/pkg/logger"
	"ZoneDesk/pkg/metrics"
	"ZoneDesk/pkg/server"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger builds the process logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects and ensures the bar table when a host is
// configured; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled() {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.BarTableDDL(barTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func barTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideBarStorage returns the ClickHouse archive, or nil without a client.
func ProvideBarStorage(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.Storage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseBarStore(ch.DB(), barTable(cfg), l)
}

// ProvideKafkaProducer creates a producer when bars are published to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != config.BackendKafka {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithDelivery(k.RequiredAcks, k.Producer.MaxAttempts),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithSymbolPartitioning(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideBarPublisher wraps the producer for the bar topic.
func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBarProcessor batches sealed minute bars to the configured backend.
func ProvideBarProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(pub, store, m, l,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideKafkaConsumer creates the archive consumer when the sink is enabled.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Sink.Enabled {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBuffer(kc.BufferSize),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		After: func(_ context.Context, topic string, _ kafka.Message, err error) {
			if err != nil {
				m.RecordError("archive_consume")
			}
		},
	})
	return consumer, nil
}

// ProvideArchiveSink drains the bar topic into ClickHouse; nil without storage.
func ProvideArchiveSink(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.ArchiveSink {
	if store == nil {
		return nil
	}
	return usecase.NewArchiveSink(cfg.Kafka.Topic, store, m)
}

func ProvideBarStore() *bars.Store {
	return bars.NewStore(bars.NewCalendar())
}

// ProvideHistory tries the REST source first and the ClickHouse archive second.
func ProvideHistory(cfg *config.Config, store repository.Storage, l *applogger.Logger) repository.HistoricalSource {
	sources := []repository.HistoricalSource{
		history.NewClient(cfg.History.BaseURL, cfg.History.Timeout, history.WithLogger(l)),
	}
	if hs, ok := store.(repository.HistoricalSource); ok && hs != nil {
		sources = append(sources, hs)
	}
	return history.NewFallback(l, sources...)
}

// ProvideMarketStream returns nil without an API key; the ingestor then
// refuses to start and HTTP keeps serving.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	if cfg.Polygon.APIKey == "" {
		l.Warn("polygon api key missing: live ingest disabled")
		return nil
	}
	return polygon.New(cfg.Polygon.APIKey, cfg.Polygon.WebSocketURL, cfg.Polygon.Symbols,
		polygon.WithPingInterval(cfg.Polygon.PingInterval),
		polygon.WithLogger(l),
	)
}

func ProvideStreamHub(m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.StreamHub {
	return usecase.NewStreamHub(m, l, usecase.WithSubscriberBuffer(cfg.Stream.SubscriberBuffer))
}

// ProvidePipeline throttles tail updates between the ingestor and the hub.
func ProvidePipeline(hub *usecase.StreamHub, m repository.Metrics, cfg *config.Config) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(hub, m, mid.WithThrottleInterval(cfg.Stream.ThrottleInterval))
}

func ProvideIngestor(
	stream repository.MarketStream,
	store *bars.Store,
	pipe *mid.RealtimePipeline,
	proc *usecase.BarProcessor,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Ingestor {
	opts := []usecase.IngestorOption{
		usecase.WithAggregateFreshness(cfg.Polygon.AggregateFreshness),
		usecase.WithBackoff(cfg.Polygon.BackoffMin, cfg.Polygon.BackoffMax),
	}
	if proc.Enabled() {
		opts = append(opts, usecase.WithArchive(proc))
	}
	return usecase.NewIngestor(stream, store, pipe, m, l, opts...)
}

func ProvideSnapshotUseCase(
	store *bars.Store,
	hist repository.HistoricalSource,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SnapshotUseCase {
	return usecase.NewSnapshotUseCase(store, hist, m, l, usecase.WithBackfillTimeout(cfg.History.BackfillTimeout))
}

func ProvideZoneEngine(cfg *config.Config, snap *usecase.SnapshotUseCase) *engines.ZoneContextEngine {
	return engines.NewZoneContextEngine(cfg.Zones.Dir, snap)
}

func ProvideFibEngine(snap *usecase.SnapshotUseCase) *engines.FibEngine {
	return engines.NewFibEngine(snap)
}

func ProvideReactionEngine(snap *usecase.SnapshotUseCase, zones *engines.ZoneContextEngine) *engines.ReactionEngine {
	return engines.NewReactionEngine(snap, zones)
}

func ProvideVolumeEngine(snap *usecase.SnapshotUseCase) *engines.VolumeEngine {
	return engines.NewVolumeEngine(snap)
}

// ProvideVolumeSource reaches the volume producer as a peer, by default this
// same process.
func ProvideVolumeSource(cfg *config.Config) *analytics.HTTPVolumeSource {
	return analytics.NewHTTPVolumeSource(analytics.NewHTTPServiceBase(cfg.Analytics.Engine4BaseURL, cfg.Analytics.Timeout))
}

func ProvideScorer(cfg *config.Config) *confluence.Scorer {
	w := cfg.Analytics.Weights
	return confluence.NewScorer(confluence.Weights{Zone: w.Zone, Fib: w.Fib, Reaction: w.Reaction, Volume: w.Volume})
}

func ProvideConfluenceUseCase(
	zones *engines.ZoneContextEngine,
	fib *engines.FibEngine,
	reaction *engines.ReactionEngine,
	volume *analytics.HTTPVolumeSource,
	scorer *confluence.Scorer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ConfluenceUseCase {
	return usecase.NewConfluenceUseCase(zones, fib, reaction, volume, scorer, m, l)
}

// ProvideResponseCache picks Redis when enabled, else an in-process TTL cache.
func ProvideResponseCache(cfg *config.Config) api.ResponseCache {
	r := cfg.Analytics.Redis
	if r.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB})
	}
	return icache.NewTTLCache()
}

// ProvideHandlers lists every route group served by the HTTP server.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	snap *usecase.SnapshotUseCase,
	hub *usecase.StreamHub,
	ingestor *usecase.Ingestor,
	zones *engines.ZoneContextEngine,
	fib *engines.FibEngine,
	reaction *engines.ReactionEngine,
	volume *engines.VolumeEngine,
	conf *usecase.ConfluenceUseCase,
	cache api.ResponseCache,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewStreamHandler(l, snap, hub, api.WithHeartbeat(cfg.Stream.HeartbeatInterval)),
		api.NewAnalyticsHandler(l, zones, fib, reaction, volume, conf,
			api.WithResponseCache(cache, cfg.Analytics.CacheTTL),
			api.WithRateLimit(cfg.Analytics.RateLimit.Capacity, cfg.Analytics.RateLimit.RefillPerSec),
		),
		api.NewHealthHandler(ingestor, hub, cfg.Polygon.Symbols),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := cfg.Metrics.Path
	if cfg.Metrics.Disabled {
		metricsPath = ""
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigin),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithStreamRoutes(api.RouteAggregate),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the process lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	ingestor *usecase.Ingestor,
	pipe *mid.RealtimePipeline,
	hub *usecase.StreamHub,
	proc *usecase.BarProcessor,
	consumer *pkgkafka.Consumer,
	sink *usecase.ArchiveSink,
	ch *pkgch.Client,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, server.Components{
		Ingestor:   ingestor,
		Pipeline:   pipe,
		Hub:        hub,
		Processor:  proc,
		Consumer:   consumer,
		Sink:       sink,
		ClickHouse: ch,
		HTTP:       srv,
	})
}
