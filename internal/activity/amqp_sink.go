package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	publishQueueSize = 256
	publishTimeout   = 2 * time.Second
	redialBackoff    = 5 * time.Second
)

var (
	ErrSinkFull   = errors.New("activity queue full")
	ErrSinkClosed = errors.New("activity sink closed")

	errBrokerDown = errors.New("broker unavailable")
)

type publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error
	Close() error
}

type outgoing struct {
	key string
	msg amqp091.Publishing
}

// AMQPSink publishes events as JSON to a topic exchange, routed by action.
// Write only enqueues; a single goroutine publishes in order and redials
// when the broker connection drops.
type AMQPSink struct {
	pub    publisher
	logger *slog.Logger
	queue  chan outgoing
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAMQPSink(url, exchange string, logger *slog.Logger) (*AMQPSink, error) {
	pub := &amqpPublisher{url: url, exchange: exchange, now: time.Now}
	if err := pub.connect(); err != nil {
		return nil, err
	}
	return newAMQPSink(pub, logger, publishQueueSize), nil
}

func newAMQPSink(pub publisher, logger *slog.Logger, size int) *AMQPSink {
	s := &AMQPSink{
		pub:    pub,
		logger: logger,
		queue:  make(chan outgoing, size),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Write never blocks on the broker. It fails with ErrSinkFull when the
// publish queue is saturated.
func (s *AMQPSink) Write(_ context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	m := outgoing{
		key: RoutingKey(e),
		msg: amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.At,
			Body:         body,
		},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- m:
		return nil
	default:
		return ErrSinkFull
	}
}

func (s *AMQPSink) run() {
	defer close(s.done)
	for m := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := s.pub.Publish(ctx, m.key, m.msg)
		cancel()
		if err != nil {
			s.logger.Warn("activity publish failed", "routing_key", m.key, "error", err)
		}
	}
}

// Close flushes queued events, then closes the broker connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.pub.Close()
}

// RoutingKey is "activity.<action>".
func RoutingKey(e Event) string {
	return "activity." + e.Action
}

// amqpPublisher is owned by the sink goroutine and is not safe for
// concurrent use.
type amqpPublisher struct {
	url      string
	exchange string
	now      func() time.Time

	conn    *amqp091.Connection
	channel *amqp091.Channel
	retryAt time.Time
}

func (p *amqpPublisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.conn, p.channel = conn, channel
	return nil
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, msg amqp091.Publishing) error {
	if p.channel == nil || p.channel.IsClosed() {
		if p.now().Before(p.retryAt) {
			return errBrokerDown
		}
		p.Close()
		if err := p.connect(); err != nil {
			p.retryAt = p.now().Add(redialBackoff)
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
