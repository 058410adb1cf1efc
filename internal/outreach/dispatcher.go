// Package outreach sends opening messages to leads over WhatsApp and records
// the contact in the interaction log.
package outreach

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/whatsapp"
)

// ErrNoPhone is returned when the target lead has no phone number.
var ErrNoPhone = eris.New("outreach: lead has no phone")

// ErrNoMessage is returned when neither a message nor a stored icebreaker is
// available.
var ErrNoMessage = eris.New("outreach: no message to send")

// Delivery channels.
const (
	ChannelAPI  = "whatsapp_api"
	ChannelLink = "wa_me_link"
)

// Request asks for one message to be sent to one lead. An empty Message
// falls back to the lead's stored icebreaker.
type Request struct {
	LeadID  string `json:"lead_id"`
	Message string `json:"message,omitempty"`
}

// Delivery reports how the message went out. Delivered is false when the API
// send did not happen; the caller then uses FallbackLink to send manually.
// A fallback is a degraded success, not an error.
type Delivery struct {
	LeadID       string      `json:"lead_id"`
	Delivered    bool        `json:"delivered"`
	Channel      string      `json:"channel"`
	MessageID    string      `json:"message_id,omitempty"`
	FallbackLink string      `json:"fallback_link,omitempty"`
	Status       lead.Status `json:"status"`
}

// Dispatcher sends outreach messages. The WhatsApp client is optional; with
// a nil client every send degrades to a wa.me link.
type Dispatcher struct {
	store  store.Store
	sender whatsapp.Client
}

// NewDispatcher creates a Dispatcher. sender may be nil.
func NewDispatcher(s store.Store, sender whatsapp.Client) *Dispatcher {
	return &Dispatcher{store: s, sender: sender}
}

// Send delivers the message to the lead and logs an outbound interaction,
// which transitions a NOVO lead to CONTATADO. The interaction is logged for
// both API and fallback deliveries.
func (d *Dispatcher) Send(ctx context.Context, ownerID string, req Request) (*Delivery, error) {
	l, err := d.store.GetLead(ctx, ownerID, req.LeadID)
	if err != nil {
		return nil, err
	}
	if l.Phone == "" {
		return nil, ErrNoPhone
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = strings.TrimSpace(l.Icebreaker)
	}
	if message == "" {
		return nil, ErrNoMessage
	}

	number := internationalNumber(l.Phone)
	delivery := &Delivery{LeadID: l.ID}
	logger := zap.L().With(zap.String("owner_id", ownerID), zap.String("lead_id", l.ID))

	if d.sender != nil {
		res, err := d.sender.SendText(ctx, number, message)
		if err == nil {
			delivery.Delivered = true
			delivery.Channel = ChannelAPI
			delivery.MessageID = res.MessageID
		} else {
			logger.Warn("whatsapp send failed, degrading to link", zap.Error(err))
		}
	}
	if !delivery.Delivered {
		delivery.Channel = ChannelLink
		delivery.FallbackLink = "https://wa.me/" + number + "?text=" + url.QueryEscape(message)
	}

	updated, err := d.store.LogInteraction(ctx, ownerID, lead.Interaction{
		LeadID:    l.ID,
		Type:      "mensagem",
		Direction: lead.DirectionOutbound,
		Content:   message,
	})
	if err != nil {
		return nil, eris.Wrap(err, "outreach: log interaction")
	}
	delivery.Status = updated.Status

	logger.Info("outreach sent",
		zap.String("channel", delivery.Channel),
		zap.Bool("delivered", delivery.Delivered))

	return delivery, nil
}

// internationalNumber prefixes the Brazilian country code when the stored
// national number lacks it.
func internationalNumber(digits string) string {
	if strings.HasPrefix(digits, "55") && len(digits) >= 12 {
		return digits
	}
	return "55" + digits
}
