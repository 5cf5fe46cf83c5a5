package di

import (
	"context"
	"fmt"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/handler/api"
	internalrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/bridge"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/gapscan"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/usecase"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/cache"
	pkgch "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/clickhouse"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/config"
	xhttp "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/http"
	pkgkafka "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/kafka"
	applogger "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/metrics"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client. Nil when the
// memory backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Backend != "clickhouse" {
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
	return client, nil
}

// ProvideBarStore creates the bar store for the configured backend.
func ProvideBarStore(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) (repository.BarStore, error) {
	if cfg.Storage.Backend == "memory" {
		return internalrepo.NewMemoryStore(), nil
	}

	store := internalrepo.NewClickHouseStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideOutcomePublisher creates the per-cycle outcome publisher.
func ProvideOutcomePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.OutcomePublisher {
	if producer == nil {
		return internalrepo.NopOutcomePublisher{}
	}
	return internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomeTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMarketSource creates the bridge REST client.
func ProvideMarketSource(cfg *config.Config, l *applogger.Logger) repository.MarketSource {
	return bridge.New(cfg.Bridge.BaseURL, l,
		bridge.WithTimeout(cfg.Bridge.Timeout),
		bridge.WithRateLimit(cfg.Bridge.RateLimit.RequestsPerSec, cfg.Bridge.RateLimit.Burst),
	)
}

// ProvideCalendarProvider builds market-hours calendars from config.
func ProvideCalendarProvider(cfg *config.Config) (*calendar.Provider, error) {
	def, err := buildCalendar(cfg.Calendar.Default)
	if err != nil {
		return nil, fmt.Errorf("calendar default: %w", err)
	}

	named := make(map[string]*calendar.Calendar, len(cfg.Calendar.Named))
	for name, cc := range cfg.Calendar.Named {
		cal, err := buildCalendar(cc)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: %w", name, err)
		}
		named[name] = cal
	}

	perSymbol := make(map[string]*calendar.Calendar)
	for _, s := range cfg.Symbols {
		if s.Calendar != "" {
			perSymbol[s.Name] = named[s.Calendar]
		}
	}
	return calendar.NewProvider(def, perSymbol), nil
}

func buildCalendar(cc config.CalendarConfig) (*calendar.Calendar, error) {
	if len(cc.Sessions) == 0 && len(cc.Holidays) == 0 {
		return calendar.AlwaysOpen(), nil
	}
	sessions := make([]calendar.SessionSpec, 0, len(cc.Sessions))
	for _, s := range cc.Sessions {
		sessions = append(sessions, calendar.SessionSpec{Day: s.Day, Open: s.Open, Close: s.Close})
	}
	return calendar.New(sessions, cc.Holidays)
}

// ProvideAnalyzer creates the gap analyzer.
func ProvideAnalyzer(store repository.BarStore) *gapscan.Analyzer {
	return gapscan.New(store)
}

// ProvideUpdater creates the update orchestrator.
func ProvideUpdater(
	store repository.BarStore,
	source repository.MarketSource,
	analyzer *gapscan.Analyzer,
	calendars *calendar.Provider,
	pub repository.OutcomePublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Updater {
	return usecase.NewUpdater(store, source, analyzer, calendars, pub, m, l, usecase.UpdaterConfig{
		Lookback:         cfg.Update.Lookback,
		MaxGapAge:        cfg.Update.MaxGapAge,
		MaxBarsPerFetch:  cfg.Update.MaxBarsPerFetch,
		Workers:          cfg.Update.Workers,
		RetryAttempts:    cfg.Update.RetryAttempts,
		RetryDelay:       cfg.Update.RetryDelay,
		RetryExponential: cfg.Update.RetryExponential,
		FailureThreshold: cfg.Update.FailureThreshold,
	})
}

// ProvideCache creates the read-path cache. Layered over Redis when
// enabled, in-process only otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideResampled creates the resampled-read use case.
func ProvideResampled(store repository.BarStore, c cache.Service, cfg *config.Config) *usecase.ResampledUseCase {
	return usecase.NewResampledUseCase(store, c, cfg.Cache.TTL)
}

// ProvideGapRepairHandler registers the handler for the repair topic.
func ProvideGapRepairHandler(
	updater *usecase.Updater,
	store repository.BarStore,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.GapRepairHandler {
	return usecase.NewGapRepairHandler(cfg.Kafka.RepairTopic, updater, store, m, l)
}

// ProvideBarsHandler creates the read API handler.
func ProvideBarsHandler(
	l *applogger.Logger,
	resampled *usecase.ResampledUseCase,
	analyzer *gapscan.Analyzer,
	calendars *calendar.Provider,
	store repository.BarStore,
) xhttp.Handler {
	return api.NewBarsEchoHandler(l, resampled, analyzer, calendars, store)
}

// producerPublisher adapts the Kafka producer to the log collector.
type producerPublisher struct {
	producer *pkgkafka.Producer
}

func (p producerPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	updater *usecase.Updater,
	store repository.BarStore,
	consumer *pkgkafka.Consumer,
	repair *usecase.GapRepairHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		// Aggregate repeated warn/error logs onto the outcome topic's
		// sibling stream instead of flooding stdout.
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.OutcomeTopic + ".logs",
			Publisher:      producerPublisher{producer: producer},
		})
	}
	var kh pkgkafka.MessageHandler
	if consumer != nil {
		kh = repair
	}
	return server.New(cfg, l, updater, store, consumer, kh, chClient, handler)
}
