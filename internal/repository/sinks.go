package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	drepo "PriceProbe/internal/domain/repository"
	pkgamqp "PriceProbe/pkg/amqp"
	xhttp "PriceProbe/pkg/http"
	pkgkafka "PriceProbe/pkg/kafka"
	"PriceProbe/pkg/queue"
)

// AMQPSink delivers to a durable RabbitMQ queue.
type AMQPSink struct {
	pub *pkgamqp.Publisher
}

// NewAMQPSink creates an AMQP-backed sink.
func NewAMQPSink(pub *pkgamqp.Publisher) drepo.Sink {
	return &AMQPSink{pub: pub}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Connect(ctx context.Context) error {
	return s.pub.Connect(ctx)
}

func (s *AMQPSink) Publish(ctx context.Context, _ string, body []byte) error {
	err := s.pub.Publish(ctx, body)
	if errors.Is(err, pkgamqp.ErrNotConnected) {
		return fmt.Errorf("%w: %v", drepo.ErrSessionLost, err)
	}
	return err
}

func (s *AMQPSink) Close() error { return s.pub.Close() }

// KafkaSink delivers to a Kafka topic, keyed by symbol so a symbol's
// observations stay on one partition in order.
type KafkaSink struct {
	producer *pkgkafka.Producer
}

// NewKafkaSink creates a Kafka-backed sink.
func NewKafkaSink(producer *pkgkafka.Producer) drepo.Sink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Connect(ctx context.Context) error {
	return s.producer.EnsureTopic(ctx)
}

func (s *KafkaSink) Publish(ctx context.Context, key string, body []byte) error {
	err := s.producer.Publish(ctx, []byte(key), body)
	if errors.Is(err, pkgkafka.ErrNotConnected) {
		return fmt.Errorf("%w: %v", drepo.ErrSessionLost, err)
	}
	return err
}

func (s *KafkaSink) Close() error { return s.producer.Close() }

// RedisSink delivers to a Redis list used as a named queue.
type RedisSink struct {
	pub *queue.RedisPublisher
}

// NewRedisSink creates a Redis-backed sink.
func NewRedisSink(pub *queue.RedisPublisher) drepo.Sink {
	return &RedisSink{pub: pub}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Connect(ctx context.Context) error {
	return s.pub.Start(ctx)
}

func (s *RedisSink) Publish(ctx context.Context, _ string, body []byte) error {
	err := s.pub.Enqueue(ctx, body)
	if errors.Is(err, queue.ErrNotConnected) {
		return fmt.Errorf("%w: %v", drepo.ErrSessionLost, err)
	}
	return err
}

func (s *RedisSink) Close() error { return s.pub.Stop() }

// HTTPSink POSTs each observation to an ingestion endpoint.
type HTTPSink struct {
	url       string
	healthURL string
	client    *xhttp.Client
}

// NewHTTPSink creates an HTTP ingestion sink. When healthURL is empty the
// ingestion URL itself is probed on Connect.
func NewHTTPSink(url, healthURL string, client *xhttp.Client) drepo.Sink {
	if client == nil {
		client = xhttp.NewClient()
	}
	return &HTTPSink{url: url, healthURL: healthURL, client: client}
}

func (s *HTTPSink) Name() string { return "http" }

// Connect succeeds once the endpoint answers. Without a health URL any
// response below 500 counts; with one, a 2xx is required.
func (s *HTTPSink) Connect(ctx context.Context) error {
	target, method := s.url, xhttp.MethodHead
	if s.healthURL != "" {
		target, method = s.healthURL, xhttp.MethodGet
	}
	resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{Method: method, URL: target})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if s.healthURL != "" && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return &xhttp.StatusError{Code: resp.StatusCode}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &xhttp.StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (s *HTTPSink) Publish(ctx context.Context, _ string, body []byte) error {
	return s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil)
}

func (s *HTTPSink) Close() error { return nil }
