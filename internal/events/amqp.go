package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a connection and channel.
type dialFunc func(url string) (closer, channel, error)

type closer interface {
	Close() error
}

// AMQPPublisher publishes JSON events to a durable topic exchange, keyed by
// event type. A failed publish drops the channel so the next call redials.
type AMQPPublisher struct {
	url      string
	exchange string
	dial     dialFunc
	log      *slog.Logger

	mu   sync.Mutex
	conn closer
	ch   channel
}

// AMQPOption configures an AMQPPublisher.
type AMQPOption func(*AMQPPublisher)

// WithLogger sets the publisher logger.
func WithLogger(l *slog.Logger) AMQPOption {
	return func(p *AMQPPublisher) {
		p.log = l
	}
}

func withDialer(d dialFunc) AMQPOption {
	return func(p *AMQPPublisher) {
		p.dial = d
	}
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(url, exchange string, opts ...AMQPOption) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		dial:     dialAMQP,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(url string) (closer, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, ch, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declaring exchange %s: %w", p.exchange, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Publish sends one persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         e.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, msg); err != nil {
		p.resetLocked()
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		p.log.Warn("event publish failed", "type", e.Type, "error", err)
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(e.Type, "ok").Inc()
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
