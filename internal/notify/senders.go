package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/donaldgifford/flight-price-tracker/internal/config"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// SendersFromConfig builds one sender per channel. Channels that are not
// enabled get a NoOpSender.
func SendersFromConfig(ctx context.Context, cfg *config.DeliveryConfig, log *slog.Logger) ([]Sender, error) {
	senders := make([]Sender, 0, len(domain.AllChannels))

	for _, ch := range domain.AllChannels {
		s, err := senderFor(ctx, ch, cfg)
		if err != nil {
			return nil, fmt.Errorf("configuring %s sender: %w", ch, err)
		}
		if s == nil {
			log.Info("channel not configured, using no-op sender", "channel", ch)
			s = NewNoOpSender(ch, log)
		}
		senders = append(senders, s)
	}

	return senders, nil
}

func senderFor(ctx context.Context, ch domain.Channel, cfg *config.DeliveryConfig) (Sender, error) {
	switch ch {
	case domain.ChannelEmail:
		if !cfg.Email.Enabled {
			return nil, nil
		}
		svc, err := NewGmailService(ctx, cfg.Email.ClientID, cfg.Email.ClientSecret, cfg.Email.RefreshToken)
		if err != nil {
			return nil, err
		}
		return NewEmailSender(svc, cfg.Email.From), nil
	case domain.ChannelSMS:
		if !cfg.SMS.Enabled {
			return nil, nil
		}
		return NewSMSSender(cfg.SMS.URL, cfg.SMS.AccountID, cfg.SMS.AuthToken, cfg.SMS.From), nil
	case domain.ChannelPush:
		if !cfg.Push.Enabled {
			return nil, nil
		}
		return NewPushSender(cfg.Push.URL, cfg.Push.APIKey), nil
	case domain.ChannelBrowser:
		if !cfg.Browser.Enabled {
			return nil, nil
		}
		return NewBrowserSender(cfg.Browser.Secret), nil
	case domain.ChannelTelegram:
		if !cfg.Telegram.Enabled {
			return nil, nil
		}
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("creating telegram bot: %w", err)
		}
		return NewTelegramSender(bot), nil
	case domain.ChannelDiscord:
		if !cfg.Discord.Enabled {
			return nil, nil
		}
		return NewDiscordSender(cfg.Discord.WebhookURL), nil
	default:
		return nil, fmt.Errorf("unknown channel %q", ch)
	}
}
