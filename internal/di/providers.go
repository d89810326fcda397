package di

import (
	"context"
	"fmt"
	"time"

	"PriceProbe/internal/domain/models"
	"PriceProbe/internal/domain/repository"
	"PriceProbe/internal/handler/api"
	internalrepo "PriceProbe/internal/repository"
	"PriceProbe/internal/service/anomaly"
	"PriceProbe/internal/service/fallback"
	"PriceProbe/internal/service/marketdata"
	"PriceProbe/internal/service/window"
	"PriceProbe/internal/usecase"
	pkgamqp "PriceProbe/pkg/amqp"
	"PriceProbe/pkg/cache"
	"PriceProbe/pkg/config"
	xhttp "PriceProbe/pkg/http"
	pkgkafka "PriceProbe/pkg/kafka"
	"PriceProbe/pkg/logger"
	"PriceProbe/pkg/metrics"
	"PriceProbe/pkg/queue"
	"PriceProbe/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideInstruments maps configured pairs to domain instruments.
func ProvideInstruments(cfg *config.Config) ([]models.Instrument, error) {
	pairs, err := cfg.InstrumentList()
	if err != nil {
		return nil, err
	}
	out := make([]models.Instrument, len(pairs))
	for i, p := range pairs {
		out[i] = models.Instrument{SourceSymbol: p.Source, DisplaySymbol: p.Display}
	}
	return out, nil
}

// ProvideFetcher creates the market-data client.
func ProvideFetcher(cfg *config.Config) repository.PriceFetcher {
	return marketdata.New(cfg.MarketData.URL, cfg.MarketData.Timeout)
}

// ProvideFallback creates the synthetic price generator.
func ProvideFallback(cfg *config.Config) repository.FallbackGenerator {
	opts := []fallback.Option{
		fallback.WithBenchmark(cfg.Anomaly.Benchmark, cfg.Fallback.BenchmarkBase),
		fallback.WithDefaultBase(cfg.Fallback.DefaultBase),
		fallback.WithSpread(cfg.Fallback.Spread),
	}
	for sym, base := range cfg.Fallback.Bases {
		opts = append(opts, fallback.WithBase(sym, base))
	}
	return fallback.New(opts...)
}

// ProvideWindowTracker creates the per-symbol trailing window.
func ProvideWindowTracker(cfg *config.Config) repository.WindowTracker {
	return window.New(cfg.Aggregation.WindowSize)
}

// ProvideClassifier creates the anomaly classifier.
func ProvideClassifier(cfg *config.Config) repository.Classifier {
	return anomaly.New(anomaly.Config{
		SpikeThreshold: cfg.Anomaly.SpikeThreshold,
		Benchmark:      cfg.Anomaly.Benchmark,
		BandLow:        cfg.Anomaly.BandLow,
		BandHigh:       cfg.Anomaly.BandHigh,
	})
}

// ProvideSink builds the sink selected by sink.mode. No connection is made
// here; the delivery channel connects with retry.
func ProvideSink(cfg *config.Config) (repository.Sink, error) {
	switch cfg.Sink.Mode {
	case config.SinkAMQP:
		pub, err := pkgamqp.NewPublisher(cfg.RabbitMQ.Addr, cfg.RabbitMQ.Queue, pkgamqp.WithAppID(cfg.RabbitMQ.AppID))
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		return internalrepo.NewAMQPSink(pub), nil
	case config.SinkKafka:
		producer, err := pkgkafka.NewProducer(cfg.Kafka.Topic,
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
			pkgkafka.WithTopicLayout(cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaSink(producer), nil
	case config.SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return internalrepo.NewRedisSink(queue.NewRedisPublisher(client, cfg.Redis.Key, queue.WithMaxLen(cfg.Redis.MaxLen))), nil
	case config.SinkHTTP:
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.HTTP.Timeout))
		return internalrepo.NewHTTPSink(cfg.HTTP.IngestURL, cfg.HTTP.HealthURL, client), nil
	default:
		return nil, fmt.Errorf("unknown sink mode %q", cfg.Sink.Mode)
	}
}

// ProvideDeliveryChannel wraps the sink with connect-retry and accounting.
func ProvideDeliveryChannel(sink repository.Sink, cfg *config.Config, log *logger.Logger, m repository.Metrics) *usecase.DeliveryChannel {
	return usecase.NewDeliveryChannel(sink, cfg.Sink.ConnectBackoff, log, m)
}

// ProvideSnapshotCache creates the latest-observation cache. A Redis backend
// that cannot be reached at startup degrades to memory.
func ProvideSnapshotCache(cfg *config.Config, log *logger.Logger) cache.Service {
	mem := func() cache.Service {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Snapshot.MaxSize))
	}
	if cfg.Snapshot.Backend != "redis" {
		return mem()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Snapshot.RedisAddr),
		cache.WithRedisPrefix(cfg.Snapshot.Prefix),
	)
	if err != nil {
		log.Warn("snapshot redis unavailable, using memory", logger.Error(err))
		return mem()
	}
	return rc
}

// ProvideSnapshotStore creates the snapshot repository.
func ProvideSnapshotStore(c cache.Service) repository.SnapshotStore {
	return internalrepo.NewSnapshotStore(c)
}

// ProvideAggregator creates the cycle controller.
func ProvideAggregator(
	cfg *config.Config,
	instruments []models.Instrument,
	fetcher repository.PriceFetcher,
	gen repository.FallbackGenerator,
	tracker repository.WindowTracker,
	classifier repository.Classifier,
	delivery *usecase.DeliveryChannel,
	store repository.SnapshotStore,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(instruments, fetcher, gen, tracker, classifier, delivery, m, log,
		usecase.WithDelays(cfg.Aggregation.InstrumentDelay, cfg.Aggregation.CycleDelay),
		usecase.WithSnapshot(store),
	)
}

// ProvideStatusHandler creates the status API handler.
func ProvideStatusHandler(log *logger.Logger, store repository.SnapshotStore, delivery *usecase.DeliveryChannel) xhttp.Handler {
	return api.NewStatusEchoHandler(log, store, delivery)
}

// ProvideHTTPServer creates the status server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, log *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, log,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	agg *usecase.Aggregator,
	delivery *usecase.DeliveryChannel,
	srv *xhttp.Server,
	snapshot cache.Service,
) *server.App {
	return server.New(cfg, log, agg, delivery, srv, snapshot)
}
