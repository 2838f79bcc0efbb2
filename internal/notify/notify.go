// Package notify delivers messages to item owners across independent
// channels (SMS, WhatsApp, voice). Each channel is attempted in isolation:
// one provider failing never suppresses the others, and the returned outcome
// map is the ground truth of what was actually delivered. The dispatcher
// never retries; retry policy belongs to callers.
package notify

import (
	"context"
	"log/slog"
)

// Channel names.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelVoice    = "voice"
)

// Outcome prefixes. Every value in a dispatch result starts with one of
// these, followed by a provider reference or an error detail.
const (
	outcomeSent   = "sent"
	outcomeFailed = "failed"
)

// Provider delivers one message over a single transport and returns an
// opaque provider reference on success.
type Provider interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Dispatcher fans a message out across the requested channels.
type Dispatcher struct {
	providers map[string]Provider
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher over the given channel providers.
// Channels without a provider report failure per dispatch instead of being
// silently dropped.
func NewDispatcher(providers map[string]Provider, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{providers: providers, logger: logger}
}

// Send attempts delivery on every requested channel independently and
// returns one outcome string per channel. Callers must treat the map as
// authoritative and never assume all-or-nothing delivery.
func (d *Dispatcher) Send(ctx context.Context, contact, message string, channels []string) map[string]string {
	results := make(map[string]string, len(channels))
	for _, ch := range channels {
		provider, ok := d.providers[ch]
		if !ok {
			results[ch] = outcomeFailed + ": no provider configured"
			continue
		}

		ref, err := provider.Send(ctx, contact, message)
		if err != nil {
			results[ch] = outcomeFailed + ": " + err.Error()
			d.logger.Warn("notification failed", "channel", ch, "contact", contact, "error", err)
			continue
		}
		results[ch] = outcomeSent + " (ref: " + ref + ")"
		d.logger.Info("notification sent", "channel", ch, "ref", ref)
	}
	return results
}
