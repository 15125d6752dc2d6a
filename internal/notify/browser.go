package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Browser relay signature headers.
const (
	SignatureHeader = "X-FPT-Signature"
	TimestampHeader = "X-FPT-Timestamp"
)

// BrowserSender posts signed notifications to a web push relay. The
// destination is the subscription's relay endpoint.
type BrowserSender struct {
	secret  []byte
	http    httpClient
	nowFunc func() time.Time
}

// NewBrowserSender creates a new BrowserSender.
func NewBrowserSender(secret string, opts ...HTTPOption) *BrowserSender {
	return &BrowserSender{
		secret:  []byte(secret),
		http:    newHTTPClient(opts),
		nowFunc: time.Now,
	}
}

type browserNotification struct {
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	AlertID string  `json:"alert_id"`
	QuoteID string  `json:"quote_id"`
	Price   float64 `json:"price"`
}

// Channel implements Sender.
func (s *BrowserSender) Channel() domain.Channel { return domain.ChannelBrowser }

// Send signs and posts the notification.
func (s *BrowserSender) Send(ctx context.Context, destination string, p Payload) error {
	u, err := url.Parse(destination)
	if destination == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return Permanent(domain.ChannelBrowser, fmt.Errorf("invalid endpoint %q: %w", destination, ErrNoDestination))
	}

	body, err := json.Marshal(browserNotification{
		Title:   p.Subject(),
		Body:    p.Text(),
		AlertID: p.AlertID,
		QuoteID: p.QuoteID,
		Price:   p.Price,
	})
	if err != nil {
		return Permanent(domain.ChannelBrowser, err)
	}

	ts := strconv.FormatInt(s.nowFunc().Unix(), 10)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(TimestampHeader, ts)
	header.Set(SignatureHeader, "sha256="+Sign(s.secret, ts, body))
	return s.http.do(ctx, domain.ChannelBrowser, destination, body, header)
}

// Sign computes the hex HMAC-SHA256 of "timestamp.body".
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
