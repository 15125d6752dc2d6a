package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// TelegramSender delivers alerts through the Telegram Bot API. The
// destination is the numeric chat ID.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender creates a new TelegramSender.
func NewTelegramSender(bot *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// Channel implements Sender.
func (s *TelegramSender) Channel() domain.Channel { return domain.ChannelTelegram }

// Send posts one message to the chat. The bot client has no context
// support, so a cancelled ctx is only honored before the call.
func (s *TelegramSender) Send(ctx context.Context, destination string, p Payload) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return Permanent(domain.ChannelTelegram, fmt.Errorf("invalid chat id %q: %w", destination, ErrNoDestination))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, p.Subject()+"\n"+p.Text())
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			return statusError(domain.ChannelTelegram, tgErr.Code, tgErr.Message)
		}
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
