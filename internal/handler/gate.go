package handler

import (
	"context"
	"errors"

	"event-rsvp-bot/internal/models"
	"event-rsvp-bot/internal/phone"
	"event-rsvp-bot/internal/storage"
)

// ErrUnknownSender is returned when an inbound address does not match any
// registered invitee. Callers must take no further action: no reply, no
// state creation, nothing surfaced to the sender.
var ErrUnknownSender = errors.New("handler: sender is not a registered invitee")

type inviteeResolver interface {
	InviteeByPhone(ctx context.Context, phoneNumber string) (*models.Invitee, error)
}

// Gate resolves a raw transport identity to a known invitee. Only known
// invitees can interact with the bot.
type Gate struct {
	store inviteeResolver
}

func NewGate(store inviteeResolver) *Gate {
	return &Gate{store: store}
}

// Resolve canonicalizes the raw address and looks up the invitee.
func (g *Gate) Resolve(ctx context.Context, rawAddress string) (*models.Invitee, error) {
	addr := phone.Canonicalize(rawAddress)
	if addr == "" {
		return nil, ErrUnknownSender
	}

	inv, err := g.store.InviteeByPhone(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownSender
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}
