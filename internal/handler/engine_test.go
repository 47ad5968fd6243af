package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"event-rsvp-bot/internal/config"
	"event-rsvp-bot/internal/delivery"
	"event-rsvp-bot/internal/messages"
	"event-rsvp-bot/internal/models"
	"event-rsvp-bot/internal/storage"
)

// fakeStore is an in-memory conversationStore.
type fakeStore struct {
	invitees map[string]*models.Invitee
	states   map[int64]models.ConversationState
	rsvps    map[int64]*models.RSVP
	logged   []models.MessageRecord
}

func newFakeStore(invitees ...*models.Invitee) *fakeStore {
	s := &fakeStore{
		invitees: map[string]*models.Invitee{},
		states:   map[int64]models.ConversationState{},
		rsvps:    map[int64]*models.RSVP{},
	}
	for _, inv := range invitees {
		s.invitees[inv.PhoneNumber] = inv
	}
	return s
}

func (s *fakeStore) InviteeByPhone(ctx context.Context, phoneNumber string) (*models.Invitee, error) {
	inv, ok := s.invitees[phoneNumber]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return inv, nil
}

func (s *fakeStore) ListInvitees(ctx context.Context) ([]models.Invitee, error) {
	var out []models.Invitee
	for _, inv := range s.invitees {
		out = append(out, *inv)
	}
	return out, nil
}

func (s *fakeStore) State(ctx context.Context, inviteeID int64) (models.ConversationState, error) {
	state, ok := s.states[inviteeID]
	if !ok {
		return models.StateInitial, nil
	}
	return state, nil
}

func (s *fakeStore) SetState(ctx context.Context, inviteeID int64, state models.ConversationState) error {
	s.states[inviteeID] = state
	return nil
}

func (s *fakeStore) UpsertRSVPStatus(ctx context.Context, inviteeID int64, status models.RSVPStatus) error {
	rsvp, ok := s.rsvps[inviteeID]
	if !ok {
		rsvp = &models.RSVP{InviteeID: inviteeID}
		s.rsvps[inviteeID] = rsvp
	}
	rsvp.Status = status
	return nil
}

func (s *fakeStore) SetFoodPreference(ctx context.Context, inviteeID int64, pref models.FoodPreference) error {
	s.rsvps[inviteeID].FoodPreference = pref
	return nil
}

func (s *fakeStore) SetDrinkPreference(ctx context.Context, inviteeID int64, pref models.DrinkPreference) error {
	s.rsvps[inviteeID].DrinkPreference = pref
	return nil
}

func (s *fakeStore) LogMessage(ctx context.Context, rec models.MessageRecord) error {
	s.logged = append(s.logged, rec)
	return nil
}

// fakeQueue captures tasks instead of sending them.
type fakeQueue struct {
	tasks []delivery.Task
}

func (q *fakeQueue) Enqueue(task delivery.Task) *delivery.Pending {
	q.tasks = append(q.tasks, task)
	return delivery.NewPending()
}

func testCatalog() *messages.Catalog {
	return messages.NewCatalog(config.EventConfig{
		Name:        "Gala Dinner",
		Date:        time.Date(2026, 12, 12, 0, 0, 0, 0, time.UTC),
		DateDisplay: "December 12, 2026",
		Day:         "Saturday",
		Time:        "7:00 PM",
		Location:    "Grand Hotel",
	})
}

func newTestEngine(store *fakeStore, queue *fakeQueue, invitationImage string) *Engine {
	return NewEngine(store, queue, testCatalog(), invitationImage, zerolog.Nop())
}

func clara() *models.Invitee {
	return &models.Invitee{ID: 1, Name: "Clara", PhoneNumber: "+971501234567"}
}

func TestHandleMessage_UnknownSenderIsSilentlyDropped(t *testing.T) {
	store := newFakeStore(clara())
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), "+15550001111", "yes"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if len(queue.tasks) != 0 {
		t.Errorf("expected zero outbound sends, got %d", len(queue.tasks))
	}
	if len(store.states) != 0 || len(store.rsvps) != 0 || len(store.logged) != 0 {
		t.Errorf("expected zero state mutations for unknown sender")
	}
}

func TestHandleMessage_AffirmativeRSVP(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingRSVP
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "Yes please!"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.rsvps[inv.ID].Status; got != models.RSVPAttending {
		t.Errorf("got rsvp status %q, want attending", got)
	}
	if got := store.states[inv.ID]; got != models.StateAwaitingFood {
		t.Errorf("got state %q, want %q", got, models.StateAwaitingFood)
	}
	if len(queue.tasks) != 2 {
		t.Fatalf("expected 2 enqueued messages (thank-you, food prompt), got %d", len(queue.tasks))
	}
	if !strings.Contains(queue.tasks[0].Body, "Clara") {
		t.Errorf("thank-you message should address the invitee: %q", queue.tasks[0].Body)
	}
	if !strings.Contains(queue.tasks[1].Body, "food preferences") {
		t.Errorf("second message should be the food prompt: %q", queue.tasks[1].Body)
	}
}

func TestHandleMessage_NegativeRSVP(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingRSVP
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "Sorry, I can't make it"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.rsvps[inv.ID].Status; got != models.RSVPDeclined {
		t.Errorf("got rsvp status %q, want declined", got)
	}
	if got := store.states[inv.ID]; got != models.StateDeclined {
		t.Errorf("got state %q, want %q", got, models.StateDeclined)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(queue.tasks))
	}
}

func TestHandleMessage_UnrecognizedRSVPReplyReprompts(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingRSVP
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "maybe?"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.states[inv.ID]; got != models.StateAwaitingRSVP {
		t.Errorf("state should be unchanged, got %q", got)
	}
	if len(store.rsvps) != 0 {
		t.Errorf("no RSVP should be recorded for an unrecognized reply")
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 clarification message, got %d", len(queue.tasks))
	}
	if !strings.Contains(queue.tasks[0].Body, "I didn't quite understand") {
		t.Errorf("clarification should carry the notice prefix: %q", queue.tasks[0].Body)
	}
}

func TestHandleMessage_NonVegetarianNotMisclassified(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingFood
	store.rsvps[inv.ID] = &models.RSVP{InviteeID: inv.ID, Status: models.RSVPAttending}
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "non-vegetarian"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.rsvps[inv.ID].FoodPreference; got != models.FoodNonVegetarian {
		t.Errorf("got food preference %q, want non-vegetarian", got)
	}
	if got := store.states[inv.ID]; got != models.StateAwaitingDrink {
		t.Errorf("got state %q, want %q", got, models.StateAwaitingDrink)
	}
}

func TestHandleMessage_VegetarianChoice(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingFood
	store.rsvps[inv.ID] = &models.RSVP{InviteeID: inv.ID, Status: models.RSVPAttending}
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "Vegetarian food for me"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.rsvps[inv.ID].FoodPreference; got != models.FoodVegetarian {
		t.Errorf("got food preference %q, want vegetarian", got)
	}
}

func TestHandleMessage_UnrecognizedDrinkReplyReprompts(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingDrink
	store.rsvps[inv.ID] = &models.RSVP{InviteeID: inv.ID, Status: models.RSVPAttending, FoodPreference: models.FoodVegetarian}
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "blah"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.states[inv.ID]; got != models.StateAwaitingDrink {
		t.Errorf("state should be unchanged, got %q", got)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 clarification message, got %d", len(queue.tasks))
	}
	if !strings.Contains(queue.tasks[0].Body, "drink preferences") {
		t.Errorf("clarification should include the drink options text: %q", queue.tasks[0].Body)
	}
}

func TestHandleMessage_NonAlcoholicCompletesRegistration(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.StateAwaitingDrink
	store.rsvps[inv.ID] = &models.RSVP{InviteeID: inv.ID, Status: models.RSVPAttending, FoodPreference: models.FoodVegetarian}
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "non alcoholic"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.rsvps[inv.ID].DrinkPreference; got != models.DrinkNonAlcoholic {
		t.Errorf("got drink preference %q, want non-alcoholic", got)
	}
	if got := store.states[inv.ID]; got != models.StateCompleted {
		t.Errorf("got state %q, want %q", got, models.StateCompleted)
	}
	if !store.rsvps[inv.ID].Complete() {
		t.Errorf("registration should be complete")
	}
}

func TestHandleMessage_CompletedAndDeclinedAreTerminal(t *testing.T) {
	tests := []struct {
		name  string
		state models.ConversationState
		want  string
	}{
		{"completed", models.StateCompleted, "already registered"},
		{"declined", models.StateDeclined, "already declined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := clara()
			store := newFakeStore(inv)
			store.states[inv.ID] = tt.state
			queue := &fakeQueue{}
			engine := newTestEngine(store, queue, "")

			if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "yes again"); err != nil {
				t.Fatalf("HandleMessage returned error: %v", err)
			}

			if got := store.states[inv.ID]; got != tt.state {
				t.Errorf("state should be unchanged, got %q", got)
			}
			if len(queue.tasks) != 1 {
				t.Fatalf("expected 1 notice, got %d", len(queue.tasks))
			}
			if !strings.Contains(queue.tasks[0].Body, tt.want) {
				t.Errorf("notice %q should contain %q", queue.tasks[0].Body, tt.want)
			}
		})
	}
}

func TestHandleMessage_CorruptStateResets(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	store.states[inv.ID] = models.ConversationState("GARBAGE")
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "hello"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if got := store.states[inv.ID]; got != models.StateAwaitingRSVP {
		t.Errorf("got state %q, want reset to %q", got, models.StateAwaitingRSVP)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected the RSVP prompt to be resent, got %d tasks", len(queue.tasks))
	}
}

func TestHandleMessage_LogsIncomingMessage(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	if err := engine.HandleMessage(context.Background(), inv.PhoneNumber, "yes"); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if len(store.logged) != 1 {
		t.Fatalf("expected 1 incoming record, got %d", len(store.logged))
	}
	rec := store.logged[0]
	if rec.Direction != models.DirectionIncoming || rec.Status != models.StatusReceived {
		t.Errorf("incoming record has wrong direction/status: %+v", rec)
	}
	if !rec.InviteeID.Valid || rec.InviteeID.Int64 != inv.ID {
		t.Errorf("incoming record should reference the invitee: %+v", rec.InviteeID)
	}
}

func TestSendInvitation_IsIdempotentOnState(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "")

	for i := 0; i < 2; i++ {
		if err := engine.SendInvitation(context.Background(), inv); err != nil {
			t.Fatalf("SendInvitation returned error: %v", err)
		}
	}

	if got := store.states[inv.ID]; got != models.StateAwaitingRSVP {
		t.Errorf("got state %q, want %q", got, models.StateAwaitingRSVP)
	}
	if len(store.rsvps) != 0 {
		t.Errorf("sending invitations must not create RSVP records")
	}
	// greeting, invitation, prompt - twice
	if len(queue.tasks) != 6 {
		t.Fatalf("expected 6 enqueued messages, got %d", len(queue.tasks))
	}
	if queue.tasks[2].Kind != delivery.KindOptions {
		t.Errorf("RSVP prompt should be an options send, got kind %v", queue.tasks[2].Kind)
	}
}

func TestSendInvitation_MissingImageDegradesToText(t *testing.T) {
	inv := clara()
	store := newFakeStore(inv)
	queue := &fakeQueue{}
	engine := newTestEngine(store, queue, "/nonexistent/invite.jpg")

	if err := engine.SendInvitation(context.Background(), inv); err != nil {
		t.Fatalf("SendInvitation returned error: %v", err)
	}

	if len(queue.tasks) != 3 {
		t.Fatalf("expected 3 enqueued messages, got %d", len(queue.tasks))
	}
	if queue.tasks[1].Kind != delivery.KindText {
		t.Errorf("invitation should degrade to a text send, got kind %v", queue.tasks[1].Kind)
	}
}
