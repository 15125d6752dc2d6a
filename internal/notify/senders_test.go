package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func testPayload(quality int) Payload {
	return Payload{
		AlertID:     "alert-1",
		QuoteID:     "quote-1",
		FilterName:  "NYC to London",
		Route:       "JFK-LHR",
		Price:       385,
		TargetPrice: 400,
		Currency:    "USD",
		Kind:        domain.MatchExact,
		Quality:     quality,
		Provider:    "skyscanner",
		Airline:     "BA",
		Stops:       0,
		DepartAt:    time.Date(2026, 12, 20, 18, 30, 0, 0, time.UTC),
	}
}

func TestPayload_Text(t *testing.T) {
	t.Parallel()

	p := testPayload(85)
	assert.Equal(t, "Price drop: JFK-LHR USD 385.00", p.Subject())

	text := p.Text()
	assert.Contains(t, text, "NYC to London: JFK-LHR is now USD 385.00 (target 400.00)")
	assert.Contains(t, text, "on BA, nonstop")
	assert.NotContains(t, text, "Flexible match")

	p.Kind = domain.MatchFlexible
	p.Stops = 2
	p.Differences = []domain.Difference{{Field: "stops", Wanted: "0", Got: "2"}}
	text = p.Text()
	assert.Contains(t, text, "2 stops")
	assert.Contains(t, text, "Flexible match: stops 2 instead of 0;")
}

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	f := &domain.FlightFilter{
		Name:     "trip",
		Currency: "USD",
		Routes:   []domain.Route{{Origin: "SFO", Destination: "NRT"}},
	}
	a := &domain.FlightAlert{ID: "a1", TargetPrice: 700, QualityScore: 66}

	p := BuildPayload(f, a, domain.MatchResult{Kind: domain.MatchExact, Price: 650})
	assert.Equal(t, "SFO-NRT", p.Route)
	assert.Equal(t, 66, p.Quality)

	q := &domain.Quote{ID: "q9", Origin: "SJC", Destination: "NRT", Provider: "seatgeek", Currency: "EUR"}
	p = BuildPayload(f, a, domain.MatchResult{Kind: domain.MatchExact, Price: 650, Quote: q})
	assert.Equal(t, "SJC-NRT", p.Route)
	assert.Equal(t, "q9", p.QuoteID)
	assert.Equal(t, "EUR", p.Currency)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code      int
		permanent bool
	}{
		{code: 400, permanent: true},
		{code: 401, permanent: true},
		{code: 404, permanent: true},
		{code: 408, permanent: false},
		{code: 429, permanent: false},
		{code: 500, permanent: false},
		{code: 503, permanent: false},
	}

	for _, tt := range tests {
		err := statusError(domain.ChannelPush, tt.code, "body")
		assert.Equal(t, tt.permanent, IsPermanent(err), "code %d", tt.code)
	}
}

func TestDiscordSender_Send(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		quality    int
		statusCode int
		wantErr    bool
		permanent  bool
		wantColor  int
	}{
		{name: "quality 85 uses green", quality: 85, statusCode: http.StatusNoContent, wantColor: colorGreen},
		{name: "quality 70 uses yellow", quality: 70, statusCode: http.StatusNoContent, wantColor: colorYellow},
		{name: "quality 40 uses orange", quality: 40, statusCode: http.StatusNoContent, wantColor: colorOrange},
		{name: "rate limited is transient", quality: 85, statusCode: http.StatusTooManyRequests, wantErr: true},
		{name: "bad request is permanent", quality: 85, statusCode: http.StatusBadRequest, wantErr: true, permanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var received discordWebhookPayload
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, http.MethodPost, r.Method)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			d := NewDiscordSender("")
			err := d.Send(context.Background(), srv.URL, testPayload(tt.quality))

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.permanent, IsPermanent(err))
				return
			}

			require.NoError(t, err)
			require.Len(t, received.Embeds, 1)
			embed := received.Embeds[0]
			assert.Equal(t, tt.wantColor, embed.Color)
			assert.Contains(t, embed.Title, "NYC to London")

			fields := make(map[string]string)
			for _, f := range embed.Fields {
				fields[f.Name] = f.Value
			}
			assert.Equal(t, "JFK-LHR", fields["Route"])
			assert.Equal(t, "USD 385.00", fields["Price"])
			assert.Equal(t, "BA", fields["Airline"])
		})
	}
}

func TestDiscordSender_DefaultWebhook(t *testing.T) {
	t.Parallel()

	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "", testPayload(80)))
	assert.True(t, hit.Load())

	err := NewDiscordSender("").Send(context.Background(), "", testPayload(80))
	require.ErrorIs(t, err, ErrNoDestination)
	assert.True(t, IsPermanent(err))
}

func TestDiscordSender_NetworkError(t *testing.T) {
	t.Parallel()

	err := NewDiscordSender("").Send(context.Background(), "http://127.0.0.1:1", testPayload(80))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending discord request")
	assert.False(t, IsPermanent(err))
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	d := NewDiscordSender("https://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, d.http.client)
}

func TestSMSSender_Send(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "acct", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15550000000", r.PostForm.Get("From"))
		assert.LessOrEqual(t, len(r.PostForm.Get("Body")), maxSMSLength)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSMSSender(srv.URL, "acct", "secret", "+15550000000")
	require.NoError(t, s.Send(context.Background(), "+15551234567", testPayload(80)))

	err := s.Send(context.Background(), "555-1234", testPayload(80))
	require.ErrorIs(t, err, ErrNoDestination)
	assert.True(t, IsPermanent(err))
}

func TestPushSender_Send(t *testing.T) {
	t.Parallel()

	var got pushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewPushSender(srv.URL, "key")
	require.NoError(t, s.Send(context.Background(), "device-token", testPayload(80)))
	assert.Equal(t, "device-token", got.Token)
	assert.Equal(t, "alert-1", got.Data["alert_id"])

	require.ErrorIs(t, s.Send(context.Background(), "", testPayload(80)), ErrNoDestination)
}

func TestBrowserSender_SignsBody(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_790_000_000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		ts := r.Header.Get(TimestampHeader)
		assert.Equal(t, "1790000000", ts)
		assert.Equal(t, "sha256="+Sign([]byte("s3cret"), ts, body), r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewBrowserSender("s3cret")
	s.nowFunc = func() time.Time { return now }
	require.NoError(t, s.Send(context.Background(), srv.URL, testPayload(80)))

	err := s.Send(context.Background(), "not a url", testPayload(80))
	assert.True(t, IsPermanent(err))
}

func TestTelegramSender_Send(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"fpt","username":"fpt_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			if r.Form.Get("chat_id") == "403" {
				_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
				return
			}
			assert.Contains(t, r.Form.Get("text"), "JFK-LHR")
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":42,"type":"private"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	s := NewTelegramSender(bot)

	require.NoError(t, s.Send(context.Background(), "42", testPayload(80)))

	err = s.Send(context.Background(), "403", testPayload(80))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	err = s.Send(context.Background(), "@channel", testPayload(80))
	require.ErrorIs(t, err, ErrNoDestination)
}

func TestEmailSender_Send(t *testing.T) {
	t.Parallel()

	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/messages/send") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var msg gmail.Message
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		decoded, err := base64.URLEncoding.DecodeString(msg.Raw)
		assert.NoError(t, err)
		raw = string(decoded)
		if strings.Contains(raw, "To: reject@example.com") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Invalid To header"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"m1"}`)
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	s := NewEmailSender(svc, "alerts@example.com")
	require.NoError(t, s.Send(context.Background(), "Traveler <t@example.com>", testPayload(80)))
	assert.Contains(t, raw, "To: t@example.com\r\n")
	assert.Contains(t, raw, "Subject: Price drop: JFK-LHR USD 385.00\r\n")

	err = s.Send(context.Background(), "reject@example.com", testPayload(80))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	err = s.Send(context.Background(), "nope", testPayload(80))
	require.ErrorIs(t, err, ErrNoDestination)
}

func TestNoOpSender(t *testing.T) {
	t.Parallel()

	n := NewNoOpSender(domain.ChannelSMS, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, domain.ChannelSMS, n.Channel())
	require.NoError(t, n.Send(context.Background(), "", testPayload(80)))
}

// compile-time interface checks.
var (
	_ Sender = (*NoOpSender)(nil)
	_ Sender = (*DiscordSender)(nil)
	_ Sender = (*SMSSender)(nil)
	_ Sender = (*PushSender)(nil)
	_ Sender = (*BrowserSender)(nil)
	_ Sender = (*TelegramSender)(nil)
	_ Sender = (*EmailSender)(nil)
)
