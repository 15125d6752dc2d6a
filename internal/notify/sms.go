package notify

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const maxSMSLength = 320

// SMSSender posts form-encoded messages to an HTTP SMS gateway using basic
// auth. The destination is the recipient's phone number.
type SMSSender struct {
	url       string
	accountID string
	authToken string
	from      string
	http      httpClient
}

// NewSMSSender creates a new SMSSender.
func NewSMSSender(gatewayURL, accountID, authToken, from string, opts ...HTTPOption) *SMSSender {
	return &SMSSender{
		url:       gatewayURL,
		accountID: accountID,
		authToken: authToken,
		from:      from,
		http:      newHTTPClient(opts),
	}
}

// Channel implements Sender.
func (s *SMSSender) Channel() domain.Channel { return domain.ChannelSMS }

// Send delivers a short text message.
func (s *SMSSender) Send(ctx context.Context, destination string, p Payload) error {
	if !validPhone(destination) {
		return Permanent(domain.ChannelSMS, ErrNoDestination)
	}

	body := p.Subject() + ". " + p.Text()
	if len(body) > maxSMSLength {
		body = body[:maxSMSLength-3] + "..."
	}

	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", s.from)
	form.Set("Body", body)

	creds := base64.StdEncoding.EncodeToString([]byte(s.accountID + ":" + s.authToken))

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Authorization", "Basic "+creds)

	return s.http.do(ctx, domain.ChannelSMS, s.url, []byte(form.Encode()), header)
}

// validPhone accepts E.164-style numbers.
func validPhone(n string) bool {
	if !strings.HasPrefix(n, "+") || len(n) < 8 || len(n) > 16 {
		return false
	}
	for _, r := range n[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
