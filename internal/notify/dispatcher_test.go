package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/notify"
	"github.com/donaldgifford/flight-price-tracker/internal/notify/mocks"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sender(t *testing.T, ch domain.Channel) *mocks.MockSender {
	t.Helper()
	s := mocks.NewMockSender(t)
	s.EXPECT().Channel().Return(ch).Maybe()
	return s
}

func request(channels ...domain.Channel) notify.DeliveryRequest {
	return notify.DeliveryRequest{
		Filter: &domain.FlightFilter{
			ID:       "f1",
			Name:     "NYC to London",
			Channels: channels,
			Contact: domain.Contact{
				Email:          "t@example.com",
				TelegramChatID: "42",
				Phone:          "+15551234567",
			},
		},
		Alert:   &domain.FlightAlert{ID: "a1"},
		QuoteID: "q1",
		Payload: notify.Payload{AlertID: "a1", QuoteID: "q1", Price: 385},
	}
}

func newDispatcher(s *store.MemoryStore, senders ...notify.Sender) *notify.Dispatcher {
	return notify.NewDispatcher(s, senders,
		notify.WithLogger(quietLogger()),
		notify.WithRetry(2, time.Millisecond, 5*time.Millisecond),
	)
}

func TestDeliver_OneRecordPerChannel(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, "t@example.com", mock.Anything).Return(nil).Once()
	tg := sender(t, domain.ChannelTelegram)
	tg.EXPECT().Send(mock.Anything, "42", mock.Anything).Return(nil).Once()

	d := newDispatcher(s, email, tg)
	assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelTelegram}, d.Channels())

	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail, domain.ChannelTelegram))
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, domain.DeliverySent, o.Status, o.Channel)
		assert.Equal(t, 1, o.Attempts)
		require.NoError(t, o.Err)
	}

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDeliver_SecondDeliverySkipped(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	d := newDispatcher(s, email)
	ctx := context.Background()

	first := d.Deliver(ctx, request(domain.ChannelEmail))
	require.Len(t, first, 1)
	assert.Equal(t, domain.DeliverySent, first[0].Status)
	assert.Equal(t, "a1:q1:email", first[0].Key)

	second := d.Deliver(ctx, request(domain.ChannelEmail))
	require.Len(t, second, 1)
	assert.Equal(t, domain.DeliverySkipped, second[0].Status)
	assert.Equal(t, "already sent", second[0].Reason)

	history, err := s.ListNotifications(ctx, "a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	statuses := []domain.DeliveryStatus{history[0].Status, history[1].Status}
	assert.ElementsMatch(t, []domain.DeliveryStatus{domain.DeliverySent, domain.DeliverySkipped}, statuses)
}

func TestDeliver_ConcurrentDuplicatesSendOnce(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	var sends atomic.Int32
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, string, notify.Payload) error {
			sends.Add(1)
			time.Sleep(5 * time.Millisecond)
			return nil
		}).Maybe()

	d := newDispatcher(s, email)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			d.Deliver(context.Background(), request(domain.ChannelEmail))
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), sends.Load())

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	sent := 0
	for _, h := range history {
		if h.Status == domain.DeliverySent {
			sent++
		}
	}
	assert.Equal(t, 1, sent)
}

func TestDeliver_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	sms := sender(t, domain.ChannelSMS)
	sms.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway 503")).Once()
	sms.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	d := newDispatcher(s, sms)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelSMS))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliverySent, outcomes[0].Status)
	assert.Equal(t, 2, outcomes[0].Attempts)
}

func TestDeliver_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	sms := sender(t, domain.ChannelSMS)
	sms.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway 503")).Times(3)

	d := newDispatcher(s, sms)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelSMS))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliveryFailed, outcomes[0].Status)
	assert.Equal(t, 3, outcomes[0].Attempts)

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliveryFailed, history[0].Status)
	assert.False(t, history[0].Permanent)
	assert.Equal(t, 3, history[0].Attempts)
}

func TestDeliver_PermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	push := sender(t, domain.ChannelPush)
	push.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).
		Return(notify.Permanent(domain.ChannelPush, errors.New("invalid token"))).Once()

	req := request(domain.ChannelPush)
	req.Filter.Contact.PushToken = "bad"

	d := newDispatcher(s, push)
	outcomes := d.Deliver(context.Background(), req)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliveryFailed, outcomes[0].Status)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.True(t, notify.IsPermanent(outcomes[0].Err))

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Permanent)
}

func TestDeliver_MissingDestination(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	push := sender(t, domain.ChannelPush)

	d := newDispatcher(s, push)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelPush))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliveryFailed, outcomes[0].Status)
	assert.ErrorIs(t, outcomes[0].Err, notify.ErrNoDestination)
	assert.Equal(t, 0, outcomes[0].Attempts)
}

func TestDeliver_ChannelsAreIndependent(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).
		Return(notify.Permanent(domain.ChannelEmail, errors.New("bounced"))).Once()
	tg := sender(t, domain.ChannelTelegram)
	tg.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	d := newDispatcher(s, email, tg)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail, domain.ChannelTelegram, domain.ChannelEmail))
	require.Len(t, outcomes, 2)

	byChannel := map[domain.Channel]domain.DeliveryStatus{}
	for _, o := range outcomes {
		byChannel[o.Channel] = o.Status
	}
	assert.Equal(t, domain.DeliveryFailed, byChannel[domain.ChannelEmail])
	assert.Equal(t, domain.DeliverySent, byChannel[domain.ChannelTelegram])
}

func TestDeliver_NoSenderSkipped(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, "t@example.com", mock.Anything).Return(nil).Once()

	d := newDispatcher(s, email)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail, domain.ChannelSMS))
	require.Len(t, outcomes, 2)

	byChannel := map[domain.Channel]notify.DeliveryOutcome{}
	for _, o := range outcomes {
		byChannel[o.Channel] = o
	}
	assert.Equal(t, domain.DeliverySent, byChannel[domain.ChannelEmail].Status)
	assert.Equal(t, domain.DeliverySkipped, byChannel[domain.ChannelSMS].Status)
	assert.Equal(t, "no sender for channel", byChannel[domain.ChannelSMS].Reason)

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	recorded := map[domain.Channel]domain.NotificationRecord{}
	for _, rec := range history {
		recorded[rec.Channel] = rec
	}
	assert.Equal(t, domain.DeliverySent, recorded[domain.ChannelEmail].Status)
	assert.Equal(t, domain.DeliverySkipped, recorded[domain.ChannelSMS].Status)
	assert.Equal(t, "no sender for channel", recorded[domain.ChannelSMS].ErrorText)
}

// unreadableHistory fails history reads but accepts appends.
type unreadableHistory struct {
	*store.MemoryStore
}

func (unreadableHistory) HasSentNotification(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestDeliver_HistoryReadErrorRecorded(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	email := sender(t, domain.ChannelEmail)

	d := notify.NewDispatcher(unreadableHistory{s}, []notify.Sender{email}, notify.WithLogger(quietLogger()))
	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliveryFailed, outcomes[0].Status)
	require.Error(t, outcomes[0].Err)

	history, err := s.ListNotifications(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeliveryFailed, history[0].Status)
	assert.Contains(t, history[0].ErrorText, "connection reset")
}

type fakeClaimer struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
	err      error
}

func (f *fakeClaimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeClaimer) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.released = append(f.released, key)
	return nil
}

func TestDeliver_ClaimedElsewhereSkipped(t *testing.T) {
	t.Parallel()

	claimer := &fakeClaimer{held: map[string]bool{"a1:q1:email": true}}
	email := sender(t, domain.ChannelEmail)

	d := notify.NewDispatcher(store.NewMemoryStore(), []notify.Sender{email},
		notify.WithLogger(quietLogger()),
		notify.WithClaimer(claimer, time.Minute),
	)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliverySkipped, outcomes[0].Status)
	assert.Equal(t, "claimed by another instance", outcomes[0].Reason)
}

func TestDeliver_FailedSendReleasesClaim(t *testing.T) {
	t.Parallel()

	claimer := &fakeClaimer{held: map[string]bool{}}
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).
		Return(notify.Permanent(domain.ChannelEmail, errors.New("bounced"))).Once()

	d := notify.NewDispatcher(store.NewMemoryStore(), []notify.Sender{email},
		notify.WithLogger(quietLogger()),
		notify.WithClaimer(claimer, time.Minute),
	)
	d.Deliver(context.Background(), request(domain.ChannelEmail))

	assert.Equal(t, []string{"a1:q1:email"}, claimer.released)
	assert.Empty(t, claimer.held)
}

func TestDeliver_ClaimerErrorFallsBackToStore(t *testing.T) {
	t.Parallel()

	claimer := &fakeClaimer{err: errors.New("redis down")}
	email := sender(t, domain.ChannelEmail)
	email.EXPECT().Send(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	d := notify.NewDispatcher(store.NewMemoryStore(), []notify.Sender{email},
		notify.WithLogger(quietLogger()),
		notify.WithClaimer(claimer, time.Minute),
	)
	outcomes := d.Deliver(context.Background(), request(domain.ChannelEmail))
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.DeliverySent, outcomes[0].Status)
}
