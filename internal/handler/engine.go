// Package handler contains the per-invitee conversation state machine and
// the identity gate in front of it.
//
// Intent classification is deliberately plain case-insensitive substring
// matching, evaluated in a fixed order per state. That means a reply like
// "yesterday was great, no" matches the affirmative branch first; the
// re-prompt on unrecognized input is the recovery path for everything else.
package handler

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"event-rsvp-bot/internal/delivery"
	"event-rsvp-bot/internal/messages"
	"event-rsvp-bot/internal/models"
)

// conversationStore is the slice of persistence the engine needs.
type conversationStore interface {
	inviteeResolver
	ListInvitees(ctx context.Context) ([]models.Invitee, error)
	State(ctx context.Context, inviteeID int64) (models.ConversationState, error)
	SetState(ctx context.Context, inviteeID int64, state models.ConversationState) error
	UpsertRSVPStatus(ctx context.Context, inviteeID int64, status models.RSVPStatus) error
	SetFoodPreference(ctx context.Context, inviteeID int64, pref models.FoodPreference) error
	SetDrinkPreference(ctx context.Context, inviteeID int64, pref models.DrinkPreference) error
	LogMessage(ctx context.Context, rec models.MessageRecord) error
}

type outbox interface {
	Enqueue(task delivery.Task) *delivery.Pending
}

// Engine walks each invitee through the fixed RSVP dialogue.
type Engine struct {
	store           conversationStore
	queue           outbox
	catalog         *messages.Catalog
	gate            *Gate
	invitationImage string
	log             zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewEngine(store conversationStore, queue outbox, catalog *messages.Catalog, invitationImage string, log zerolog.Logger) *Engine {
	return &Engine{
		store:           store,
		queue:           queue,
		catalog:         catalog,
		gate:            NewGate(store),
		invitationImage: invitationImage,
		log:             log.With().Str("component", "conversation").Logger(),
		locks:           map[int64]*sync.Mutex{},
	}
}

// inviteeLock serializes processing per invitee so two rapid replies cannot
// both read the same state and double-advance.
func (e *Engine) inviteeLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// HandleMessage processes one inbound transport event. It is wired as the
// transport's inbound callback.
func (e *Engine) HandleMessage(ctx context.Context, rawAddress, body string) error {
	inv, err := e.gate.Resolve(ctx, rawAddress)
	if errors.Is(err, ErrUnknownSender) {
		e.log.Debug().Str("address", rawAddress).Msg("Message from unregistered number, ignoring")
		return nil
	}
	if err != nil {
		return err
	}

	lock := e.inviteeLock(inv.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.store.LogMessage(ctx, models.MessageRecord{
		InviteeID:   sql.NullInt64{Int64: inv.ID, Valid: true},
		PhoneNumber: inv.PhoneNumber,
		Direction:   models.DirectionIncoming,
		Body:        body,
		Status:      models.StatusReceived,
	}); err != nil {
		e.log.Error().Err(err).Msg("Failed to log incoming message")
	}

	state, err := e.store.State(ctx, inv.ID)
	if err != nil {
		return err
	}

	text := strings.ToLower(strings.TrimSpace(body))
	return e.process(ctx, inv, text, state)
}

func (e *Engine) process(ctx context.Context, inv *models.Invitee, text string, state models.ConversationState) error {
	switch state {
	case models.StateInitial, models.StateAwaitingRSVP:
		return e.handleRSVPResponse(ctx, inv, text)
	case models.StateAwaitingFood:
		return e.handleFoodPreference(ctx, inv, text)
	case models.StateAwaitingDrink:
		return e.handleDrinkPreference(ctx, inv, text)
	case models.StateCompleted:
		e.enqueueText(inv, e.catalog.AlreadyRegistered())
		return nil
	case models.StateDeclined:
		e.enqueueText(inv, e.catalog.AlreadyDeclined())
		return nil
	default:
		// Malformed or unknown persisted state: reset and re-prompt.
		e.log.Warn().Str("state", string(state)).Int64("invitee", inv.ID).Msg("Unknown conversation state, resetting")
		if err := e.store.SetState(ctx, inv.ID, models.StateAwaitingRSVP); err != nil {
			return err
		}
		e.enqueueRSVPPrompt(inv, e.catalog.RSVPPrompt())
		return nil
	}
}

// handleRSVPResponse classifies the attendance answer. Each transition
// persists the data mutation, then the state, then enqueues sends; outbound
// delivery is best-effort and never part of the state write.
func (e *Engine) handleRSVPResponse(ctx context.Context, inv *models.Invitee, text string) error {
	switch {
	case containsAny(text, "yes", "attend"):
		if err := e.store.UpsertRSVPStatus(ctx, inv.ID, models.RSVPAttending); err != nil {
			return err
		}
		if err := e.store.SetState(ctx, inv.ID, models.StateAwaitingFood); err != nil {
			return err
		}
		e.enqueueText(inv, e.catalog.ThankYouAttending(inv.Name))
		e.enqueueText(inv, e.catalog.FoodPrompt())

	case containsAny(text, "no", "can't", "cannot"):
		if err := e.store.UpsertRSVPStatus(ctx, inv.ID, models.RSVPDeclined); err != nil {
			return err
		}
		if err := e.store.SetState(ctx, inv.ID, models.StateDeclined); err != nil {
			return err
		}
		e.enqueueText(inv, e.catalog.DeclineResponse())

	default:
		e.enqueueRSVPPrompt(inv, "I didn't quite understand. "+e.catalog.RSVPPrompt())
	}
	return nil
}

func (e *Engine) handleFoodPreference(ctx context.Context, inv *models.Invitee, text string) error {
	var pref models.FoodPreference

	// "vegetarian" without "non" must be checked before the explicit
	// non-vegetarian branch so "non-vegetarian" is never misread.
	if strings.Contains(text, "vegetarian") && !strings.Contains(text, "non") {
		pref = models.FoodVegetarian
	} else if containsAny(text, "non-vegetarian", "non vegetarian") {
		pref = models.FoodNonVegetarian
	}

	if pref == models.FoodUnset {
		e.enqueueText(inv, "Please select one of the options:\n"+e.catalog.FoodPrompt())
		return nil
	}

	if err := e.store.SetFoodPreference(ctx, inv.ID, pref); err != nil {
		return err
	}
	if err := e.store.SetState(ctx, inv.ID, models.StateAwaitingDrink); err != nil {
		return err
	}
	e.enqueueText(inv, e.catalog.DrinkPrompt())
	return nil
}

func (e *Engine) handleDrinkPreference(ctx context.Context, inv *models.Invitee, text string) error {
	var pref models.DrinkPreference

	if strings.Contains(text, "alcoholic") && !strings.Contains(text, "non") {
		pref = models.DrinkAlcoholic
	} else if containsAny(text, "non-alcoholic", "non alcoholic") {
		pref = models.DrinkNonAlcoholic
	}

	if pref == models.DrinkUnset {
		e.enqueueText(inv, "Please select one of the options:\n"+e.catalog.DrinkPrompt())
		return nil
	}

	if err := e.store.SetDrinkPreference(ctx, inv.ID, pref); err != nil {
		return err
	}
	if err := e.store.SetState(ctx, inv.ID, models.StateCompleted); err != nil {
		return err
	}
	e.enqueueText(inv, e.catalog.RegistrationComplete())
	return nil
}

// SendInvitation sends the greeting, the invitation (with the configured
// image when present, degrading to text when missing) and the RSVP prompt,
// then re-arms the invitee into AWAITING_RSVP. Safe to invoke repeatedly.
func (e *Engine) SendInvitation(ctx context.Context, inv *models.Invitee) error {
	lock := e.inviteeLock(inv.ID)
	lock.Lock()
	defer lock.Unlock()

	e.enqueueText(inv, e.catalog.Greeting(inv.Name))

	if e.invitationImage != "" {
		if _, err := os.Stat(e.invitationImage); err == nil {
			e.queue.Enqueue(delivery.Task{
				Kind:      delivery.KindMedia,
				InviteeID: inv.ID,
				Address:   inv.PhoneNumber,
				Body:      e.catalog.Invitation(),
				AssetPath: e.invitationImage,
			})
		} else {
			e.log.Warn().Str("path", e.invitationImage).Msg("Invitation image missing, sending text only")
			e.enqueueText(inv, e.catalog.Invitation())
		}
	} else {
		e.enqueueText(inv, e.catalog.Invitation())
	}

	e.enqueueRSVPPrompt(inv, e.catalog.RSVPPrompt())

	return e.store.SetState(ctx, inv.ID, models.StateAwaitingRSVP)
}

// BroadcastInvitations sends the invitation sequence to every invitee.
// Pacing between invitees is handled by the delivery queue.
func (e *Engine) BroadcastInvitations(ctx context.Context) (sent, total int, err error) {
	invitees, err := e.store.ListInvitees(ctx)
	if err != nil {
		return 0, 0, err
	}

	for i := range invitees {
		inv := invitees[i]
		if err := e.SendInvitation(ctx, &inv); err != nil {
			e.log.Error().Err(err).Str("name", inv.Name).Msg("Failed to send invitation")
			continue
		}
		sent++
	}
	return sent, len(invitees), nil
}

func (e *Engine) enqueueText(inv *models.Invitee, body string) {
	e.queue.Enqueue(delivery.Task{
		Kind:      delivery.KindText,
		InviteeID: inv.ID,
		Address:   inv.PhoneNumber,
		Body:      body,
	})
}

func (e *Engine) enqueueRSVPPrompt(inv *models.Invitee, body string) {
	e.queue.Enqueue(delivery.Task{
		Kind:      delivery.KindOptions,
		InviteeID: inv.ID,
		Address:   inv.PhoneNumber,
		Body:      body,
		Options:   e.catalog.RSVPOptions(),
	})
}

// containsAny checks if the text contains any of the given keywords
func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
