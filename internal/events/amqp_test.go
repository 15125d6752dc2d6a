package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != amqp.ExchangeTopic || !durable {
		return errors.New("unexpected exchange settings")
	}
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAMQPPublisher_Publish(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p, err := NewAMQPPublisher("amqp://test", "fpt.events",
		WithLogger(quietLogger()),
		withDialer(func(string) (closer, channel, error) { return nopCloser{}, ch, nil }),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"fpt.events"}, ch.declared)

	e := Event{Type: TypePriceObserved, FilterID: "f1", Price: 420, Currency: "USD"}
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "fpt.events", got.exchange)
	assert.Equal(t, TypePriceObserved, got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, "f1", decoded.FilterID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_RedialsAfterFailure(t *testing.T) {
	t.Parallel()

	broken := &fakeChannel{publishErr: errors.New("channel closed")}
	healthy := &fakeChannel{}
	dials := 0

	p, err := NewAMQPPublisher("amqp://test", "fpt.events",
		WithLogger(quietLogger()),
		withDialer(func(string) (closer, channel, error) {
			dials++
			if dials == 1 {
				return nopCloser{}, broken, nil
			}
			return nopCloser{}, healthy, nil
		}),
	)
	require.NoError(t, err)

	e := Event{Type: TypeAlertTriggered, AlertID: "a1"}
	require.Error(t, p.Publish(context.Background(), e))
	assert.True(t, broken.closed)

	require.NoError(t, p.Publish(context.Background(), e))
	assert.Equal(t, 2, dials)
	assert.Len(t, healthy.published, 1)
}

func TestAMQPPublisher_DialError(t *testing.T) {
	t.Parallel()

	_, err := NewAMQPPublisher("amqp://test", "fpt.events",
		withDialer(func(string) (closer, channel, error) { return nil, nil, errors.New("refused") }),
	)
	require.Error(t, err)
}

func TestEventBuilders(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	f := &domain.FlightFilter{ID: "f1", UserID: "u1"}
	agg := &domain.AggregatedQuote{
		Price: 420, Currency: "USD", Provider: "b", Spread: 30,
		Best: domain.Quote{ID: "q2"}, ComputedAt: at,
	}

	obs := PriceObserved(f, agg)
	assert.Equal(t, TypePriceObserved, obs.Type)
	assert.Equal(t, "q2", obs.QuoteID)
	assert.Equal(t, at, obs.OccurredAt)

	a := &domain.FlightAlert{
		ID: "a1", FilterID: "f1", UserID: "u1",
		LastTriggerQuoteID: "q1", QualityScore: 77, TriggeredAt: &at,
	}
	m := domain.MatchResult{Kind: domain.MatchExact, Price: 385, Quote: &domain.Quote{Provider: "a"}}
	trig := AlertTriggered(a, m, "USD")
	assert.Equal(t, TypeAlertTriggered, trig.Type)
	assert.Equal(t, "exact", trig.Match)
	assert.Equal(t, "a", trig.Provider)
	assert.Equal(t, 77, trig.Quality)
}

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
