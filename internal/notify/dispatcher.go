package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// HistoryStore is the notification history the dispatcher reads and appends.
type HistoryStore interface {
	HasSentNotification(ctx context.Context, idempotencyKey string) (bool, error)
	AppendNotification(ctx context.Context, rec *domain.NotificationRecord) error
}

// DeliveryRequest asks for one triggered alert to be delivered on every
// channel of its filter.
type DeliveryRequest struct {
	Filter  *domain.FlightFilter
	Alert   *domain.FlightAlert
	QuoteID string
	Payload Payload
}

// DeliveryOutcome is the result for one channel.
type DeliveryOutcome struct {
	Channel  domain.Channel        `json:"channel"`
	Key      string                `json:"key"`
	Status   domain.DeliveryStatus `json:"status"`
	Attempts int                   `json:"attempts"`
	Reason   string                `json:"reason,omitempty"`
	Err      error                 `json:"-"`
}

// Dispatcher fans a triggered alert out to its channels.
type Dispatcher struct {
	senders        map[domain.Channel]Sender
	history        HistoryStore
	claims         *localClaims
	claimer        Claimer
	claimTTL       time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sendTimeout    time.Duration
	persistTimeout time.Duration
	log            *slog.Logger
	nowFunc        func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithClaimer adds a cross-process claim on each key before sending.
func WithClaimer(c Claimer, ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.claimer = c
		if ttl > 0 {
			d.claimTTL = ttl
		}
	}
}

// WithRetry configures retries of transient failures.
func WithRetry(maxRetries int, initial, maxBackoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		if initial > 0 {
			d.initialBackoff = initial
		}
		if maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithSendTimeout bounds each send attempt.
func WithSendTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithNowFunc overrides the clock for testing.
func WithNowFunc(f func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.nowFunc = f
	}
}

// NewDispatcher creates a Dispatcher over the given senders.
func NewDispatcher(history HistoryStore, senders []Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		senders:        make(map[domain.Channel]Sender, len(senders)),
		history:        history,
		claims:         newLocalClaims(),
		claimTTL:       10 * time.Minute,
		maxRetries:     3,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
		sendTimeout:    15 * time.Second,
		persistTimeout: 5 * time.Second,
		log:            slog.Default(),
		nowFunc:        time.Now,
	}
	for _, s := range senders {
		d.senders[s.Channel()] = s
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels lists the channels with a sender.
func (d *Dispatcher) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(d.senders))
	for _, ch := range domain.AllChannels {
		if _, ok := d.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Deliver attempts every channel of the filter concurrently. Channels are
// independent: one failing never blocks or cancels another.
func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) []DeliveryOutcome {
	channels := uniqueChannels(req.Filter.Channels)
	outcomes := make([]DeliveryOutcome, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Go(func() {
			outcomes[i] = d.deliverOne(ctx, req, ch)
		})
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) deliverOne(ctx context.Context, req DeliveryRequest, ch domain.Channel) DeliveryOutcome {
	out := d.attempt(ctx, req, ch)

	rec := &domain.NotificationRecord{
		AlertID:        req.Alert.ID,
		QuoteID:        req.QuoteID,
		Channel:        ch,
		IdempotencyKey: out.Key,
		Status:         out.Status,
		Attempts:       out.Attempts,
		RecordedAt:     d.nowFunc().UTC(),
	}
	switch {
	case out.Err != nil:
		rec.ErrorText = out.Err.Error()
		rec.Permanent = IsPermanent(out.Err)
	case out.Reason != "":
		rec.ErrorText = out.Reason
	}

	if err := d.appendHistory(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateDelivery) {
			d.log.Warn("duplicate delivery recorded elsewhere", "key", out.Key)
		} else {
			d.log.Error("appending notification history", "key", out.Key, "error", err)
		}
		if out.Err == nil {
			out.Err = err
		}
	}

	metrics.DeliveriesTotal.WithLabelValues(string(ch), string(out.Status)).Inc()
	switch out.Status {
	case domain.DeliveryFailed:
		d.log.Warn("delivery failed",
			"alert_id", req.Alert.ID,
			"channel", ch,
			"attempts", out.Attempts,
			"permanent", rec.Permanent,
			"error", out.Err,
		)
	case domain.DeliverySent:
		d.log.Info("delivery sent",
			"alert_id", req.Alert.ID,
			"channel", ch,
			"attempts", out.Attempts,
		)
	default:
		d.log.Debug("delivery skipped",
			"alert_id", req.Alert.ID,
			"channel", ch,
			"reason", out.Reason,
		)
	}
	return out
}

// attempt claims the key and sends on ch. Every return path yields an
// outcome that deliverOne records in history.
func (d *Dispatcher) attempt(ctx context.Context, req DeliveryRequest, ch domain.Channel) DeliveryOutcome {
	key := domain.IdempotencyKey(req.Alert.ID, req.QuoteID, ch)
	out := DeliveryOutcome{Channel: ch, Key: key, Status: domain.DeliverySkipped}

	sender, ok := d.senders[ch]
	if !ok {
		out.Reason = "no sender for channel"
		return out
	}

	if !d.claims.claim(key) {
		out.Reason = "delivery in flight"
		return out
	}
	defer d.claims.release(key)

	sent, err := d.history.HasSentNotification(ctx, key)
	if err != nil {
		out.Status = domain.DeliveryFailed
		out.Err = fmt.Errorf("checking history for %s: %w", key, err)
		return out
	}
	if sent {
		out.Reason = "already sent"
		return out
	}

	if d.claimer != nil {
		won, err := d.claimer.Claim(ctx, key, d.claimTTL)
		switch {
		case err != nil:
			// The store's unique sent key still guards the history.
			d.log.Warn("delivery claim unavailable", "key", key, "error", err)
		case !won:
			out.Reason = "claimed by another instance"
			return out
		}
	}

	start := d.nowFunc()
	attempts, sendErr := d.send(ctx, sender, req.Filter.Contact.Destination(ch), req.Payload)
	metrics.DeliveryDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())

	out.Attempts = attempts
	if sendErr != nil {
		out.Status = domain.DeliveryFailed
		out.Err = sendErr
		d.releaseClaim(ctx, key)
		return out
	}
	out.Status = domain.DeliverySent
	return out
}

// send retries transient failures with exponential backoff.
func (d *Dispatcher) send(ctx context.Context, s Sender, destination string, p Payload) (int, error) {
	ch := s.Channel()
	if destination == "" && ch != domain.ChannelDiscord {
		return 0, Permanent(ch, ErrNoDestination)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.initialBackoff
	eb.MaxInterval = d.maxBackoff
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if d.maxRetries >= 0 {
		b = backoff.WithMaxRetries(eb, uint64(d.maxRetries)) //nolint:gosec // checked non-negative
	}
	b = backoff.WithContext(b, ctx)

	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 {
			metrics.DeliveryRetriesTotal.WithLabelValues(string(ch)).Inc()
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()

		err := s.Send(sendCtx, destination, p)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		d.log.Debug("retrying delivery", "channel", ch, "attempt", attempts, "wait", wait, "error", err)
	})
	return attempts, err
}

// appendHistory writes rec even if ctx has been cancelled.
func (d *Dispatcher) appendHistory(ctx context.Context, rec *domain.NotificationRecord) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.persistTimeout)
	defer cancel()
	return d.history.AppendNotification(ctx, rec)
}

func (d *Dispatcher) releaseClaim(ctx context.Context, key string) {
	if d.claimer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.persistTimeout)
	defer cancel()
	if err := d.claimer.Release(ctx, key); err != nil {
		d.log.Warn("releasing delivery claim", "key", key, "error", err)
	}
}

func uniqueChannels(in []domain.Channel) []domain.Channel {
	seen := make(map[domain.Channel]bool, len(in))
	out := make([]domain.Channel, 0, len(in))
	for _, ch := range in {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
