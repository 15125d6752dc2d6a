package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// NewGmailService builds a Gmail API client from a stored refresh token.
func NewGmailService(ctx context.Context, clientID, clientSecret, refreshToken string) (*gmail.Service, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now(), // force refresh
	})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

// EmailSender delivers alerts through the Gmail API. The destination is the
// recipient address.
type EmailSender struct {
	svc  *gmail.Service
	from string
}

// NewEmailSender creates a new EmailSender.
func NewEmailSender(svc *gmail.Service, from string) *EmailSender {
	return &EmailSender{svc: svc, from: from}
}

// Channel implements Sender.
func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

// Send composes and sends one message.
func (s *EmailSender) Send(ctx context.Context, destination string, p Payload) error {
	to, err := mail.ParseAddress(destination)
	if err != nil {
		return Permanent(domain.ChannelEmail, fmt.Errorf("invalid address %q: %w", destination, ErrNoDestination))
	}

	raw := buildMessage(s.from, to.Address, p.Subject(), p.Text())
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	if _, err := s.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return statusError(domain.ChannelEmail, gerr.Code, gerr.Message)
		}
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
