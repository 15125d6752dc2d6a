package notify

import (
	"context"
	"net/http"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// PushSender delivers mobile push notifications through an HTTP gateway
// authenticated with a bearer key. The destination is the device token.
type PushSender struct {
	url    string
	apiKey string
	http   httpClient
}

// NewPushSender creates a new PushSender.
func NewPushSender(gatewayURL, apiKey string, opts ...HTTPOption) *PushSender {
	return &PushSender{
		url:    gatewayURL,
		apiKey: apiKey,
		http:   newHTTPClient(opts),
	}
}

type pushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Channel implements Sender.
func (s *PushSender) Channel() domain.Channel { return domain.ChannelPush }

// Send delivers one push message.
func (s *PushSender) Send(ctx context.Context, destination string, p Payload) error {
	if destination == "" {
		return Permanent(domain.ChannelPush, ErrNoDestination)
	}

	msg := pushMessage{
		Token: destination,
		Title: p.Subject(),
		Body:  p.Text(),
		Data: map[string]string{
			"alert_id": p.AlertID,
			"quote_id": p.QuoteID,
		},
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)
	return s.http.postJSON(ctx, domain.ChannelPush, s.url, msg, header)
}
