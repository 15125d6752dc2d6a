package notify

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// NoOpSender implements Sender by logging discarded alerts. It stands in for
// channels with no backend configured.
type NoOpSender struct {
	channel domain.Channel
	log     *slog.Logger
}

// NewNoOpSender creates a sender that discards alerts with a log message.
func NewNoOpSender(ch domain.Channel, log *slog.Logger) *NoOpSender {
	return &NoOpSender{channel: ch, log: log}
}

// Channel implements Sender.
func (n *NoOpSender) Channel() domain.Channel { return n.channel }

// Send logs and discards the payload.
func (n *NoOpSender) Send(_ context.Context, destination string, p Payload) error {
	n.log.Debug("notification discarded (no backend configured)",
		"channel", n.channel,
		"destination", destination,
		"alert_id", p.AlertID,
		"price", p.Price,
	)
	return nil
}
