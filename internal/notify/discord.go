package notify

import (
	"context"
	"fmt"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const (
	colorGreen  = 0x2ECC71 // quality 80+
	colorYellow = 0xF1C40F // quality 60-79
	colorOrange = 0xE67E22 // below 60
)

// DiscordSender delivers alerts as Discord webhook embeds. The destination
// is the filter's webhook URL; an empty destination falls back to the
// configured default webhook.
type DiscordSender struct {
	defaultWebhook string
	http           httpClient
}

// NewDiscordSender creates a new DiscordSender.
func NewDiscordSender(defaultWebhook string, opts ...HTTPOption) *DiscordSender {
	return &DiscordSender{
		defaultWebhook: defaultWebhook,
		http:           newHTTPClient(opts),
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Channel implements Sender.
func (d *DiscordSender) Channel() domain.Channel { return domain.ChannelDiscord }

// Send posts a single embed.
func (d *DiscordSender) Send(ctx context.Context, destination string, p Payload) error {
	url := destination
	if url == "" {
		url = d.defaultWebhook
	}
	if url == "" {
		return Permanent(domain.ChannelDiscord, ErrNoDestination)
	}

	payload := discordWebhookPayload{Embeds: []discordEmbed{buildEmbed(&p)}}
	return d.http.postJSON(ctx, domain.ChannelDiscord, url, payload, nil)
}

func buildEmbed(p *Payload) discordEmbed {
	embed := discordEmbed{
		Title: fmt.Sprintf("Price drop: %s", p.FilterName),
		Color: qualityColor(p.Quality),
		Fields: []discordEmbedField{
			{Name: "Route", Value: p.Route, Inline: true},
			{Name: "Price", Value: fmt.Sprintf("%s %.2f", p.Currency, p.Price), Inline: true},
			{Name: "Target", Value: fmt.Sprintf("%s %.2f", p.Currency, p.TargetPrice), Inline: true},
			{Name: "Quality", Value: fmt.Sprintf("%d/100", p.Quality), Inline: true},
			{Name: "Match", Value: string(p.Kind), Inline: true},
			{Name: "Provider", Value: p.Provider, Inline: true},
		},
	}

	if p.Airline != "" {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: "Airline", Value: p.Airline, Inline: true})
	}
	if p.Kind == domain.MatchFlexible {
		embed.Description = p.Text()
	}

	return embed
}

func qualityColor(score int) int {
	switch {
	case score >= 80:
		return colorGreen
	case score >= 60:
		return colorYellow
	default:
		return colorOrange
	}
}
