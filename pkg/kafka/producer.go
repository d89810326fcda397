package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// ErrNotConnected is returned by Publish before EnsureTopic succeeded.
var ErrNotConnected = errors.New("kafka: producer not connected")

// Producer wraps a Kafka writer bound to one topic.
type Producer struct {
	cfg    *ProducerConfig
	topic  string
	writer *kafka.Writer
	mu     sync.Mutex
}

// NewProducer validates configuration. No connection is made until EnsureTopic.
func NewProducer(topic string, opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks:      -1,
		Compression:       "",
		MaxAttempts:       1,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       10 * time.Second,
		BatchSize:         1,
		BatchTimeout:      10 * time.Millisecond,
		Partitions:        1,
		ReplicationFactor: 1,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	initProducerMetricsOnce()
	return &Producer{cfg: cfg, topic: topic}, nil
}

// Topic returns the bound topic.
func (p *Producer) Topic() string { return p.topic }

// EnsureTopic dials the cluster controller, creates the topic when missing and
// opens the writer. Calling it again after success is a no-op.
func (p *Producer) EnsureTopic(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		return nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             p.topic,
		NumPartitions:     p.cfg.Partitions,
		ReplicationFactor: p.cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.Brokers...),
		Topic:        p.topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  parseCompression(p.cfg.Compression),
		MaxAttempts:  p.cfg.MaxAttempts,
		WriteTimeout: p.cfg.WriteTimeout,
		ReadTimeout:  p.cfg.ReadTimeout,
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: p.cfg.BatchTimeout,
	}
	return nil
}

// Publish writes one message synchronously; the key selects the partition.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	if w == nil {
		return ErrNotConnected
	}

	start := time.Now()
	err := w.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  start,
	})
	observeProducerMetrics(p.topic, int64(len(value)), time.Since(start), err)
	return err
}

// Close closes the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		err := p.writer.Close()
		p.writer = nil
		return err
	}
	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerOnce        sync.Once
)

func initProducerMetricsOnce() {
	producerOnce.Do(func() {
		producerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceprobe_kafka_producer_messages_total",
				Help: "Total messages published to Kafka",
			},
			[]string{"topic", "result"},
		)
		producerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceprobe_kafka_producer_bytes_total",
				Help: "Total payload bytes published",
			},
			[]string{"topic"},
		)
		producerLatencyHist = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "priceprobe_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}

func observeProducerMetrics(topic string, bytes int64, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, result).Inc()
	producerBytesTotal.WithLabelValues(topic).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
