package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned by Publish when there is no live session.
var ErrNotConnected = errors.New("amqp: not connected")

// Connection is the subset of *amqp.Connection the publisher uses.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Dialer opens a connection to url.
type Dialer func(url string) (Connection, error)

// DialAMQP dials a real broker.
func DialAMQP(url string) (Connection, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &conn{c}, nil
}

type conn struct{ *amqp.Connection }

func (c *conn) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Option configures Publisher.
type Option func(*Publisher)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(p *Publisher) {
		if d != nil {
			p.dial = d
		}
	}
}

// WithDurable controls whether the queue is declared durable and messages
// are marked persistent.
func WithDurable(durable bool) Option {
	return func(p *Publisher) {
		p.durable = durable
	}
}

// WithAppID sets the app-id property on every message.
func WithAppID(id string) Option {
	return func(p *Publisher) {
		p.appID = id
	}
}

// Publisher publishes to one named queue through the default exchange.
type Publisher struct {
	url     string
	queue   string
	durable bool
	appID   string
	dial    Dialer

	mu   sync.Mutex
	conn Connection
	ch   Channel
}

// NewPublisher creates a publisher for queue on the broker at url.
func NewPublisher(url, queue string, opts ...Option) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if queue == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	p := &Publisher{
		url:     url,
		queue:   queue,
		durable: true,
		dial:    DialAMQP,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Queue returns the target queue name.
func (p *Publisher) Queue() string { return p.queue }

// Connect dials, opens a channel and declares the queue. An open session is
// reused; a closed channel on a live connection is reopened without redialing.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		if p.ch != nil && !p.ch.IsClosed() {
			return nil
		}
		if p.ch != nil {
			_ = p.ch.Close()
			p.ch = nil
		}
		ch, err := p.openChannel(p.conn)
		if err == nil {
			p.ch = ch
			return nil
		}
		// fall through and redial
	}
	p.closeLocked()

	c, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := p.openChannel(c)
	if err != nil {
		_ = c.Close()
		return err
	}

	p.conn, p.ch = c, ch
	return nil
}

func (p *Publisher) openChannel(c Connection) (Channel, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(p.queue, p.durable, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	return ch, nil
}

// Publish sends body as one JSON message. No publisher confirms are awaited.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	c, ch := p.conn, p.ch
	p.mu.Unlock()

	if c == nil || ch == nil || c.IsClosed() || ch.IsClosed() {
		return ErrNotConnected
	}

	mode := amqp.Transient
	if p.durable {
		mode = amqp.Persistent
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    uuid.NewString(),
		AppId:        p.appID,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.dropChannel(ch)
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// dropChannel forgets ch so the next Connect opens a fresh one.
func (p *Publisher) dropChannel(ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if !p.conn.IsClosed() {
			err = p.conn.Close()
		}
		p.conn = nil
	}
	return err
}
