package models

import (
	"database/sql"
	"time"
)

// RSVPStatus represents the attendance confirmation status
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPAttending RSVPStatus = "attending"
	RSVPDeclined  RSVPStatus = "declined"
)

// FoodPreference is the catering choice collected after an invitee confirms.
type FoodPreference string

const (
	FoodUnset         FoodPreference = ""
	FoodVegetarian    FoodPreference = "vegetarian"
	FoodNonVegetarian FoodPreference = "non-vegetarian"
)

// DrinkPreference is the beverage choice collected after the food choice.
type DrinkPreference string

const (
	DrinkUnset        DrinkPreference = ""
	DrinkAlcoholic    DrinkPreference = "alcoholic"
	DrinkNonAlcoholic DrinkPreference = "non-alcoholic"
)

// ConversationState is the stage of the RSVP dialogue an invitee occupies.
// It is the sole authority for how an inbound message is interpreted.
type ConversationState string

const (
	StateInitial       ConversationState = "INITIAL"
	StateAwaitingRSVP  ConversationState = "AWAITING_RSVP"
	StateAwaitingFood  ConversationState = "AWAITING_FOOD_PREFERENCE"
	StateAwaitingDrink ConversationState = "AWAITING_DRINK_PREFERENCE"
	StateCompleted     ConversationState = "COMPLETED"
	StateDeclined      ConversationState = "DECLINED"
)

// Known reports whether s is one of the defined conversation states.
// A corrupt or unrecognized stored value is treated as unknown and reset.
func (s ConversationState) Known() bool {
	switch s {
	case StateInitial, StateAwaitingRSVP, StateAwaitingFood,
		StateAwaitingDrink, StateCompleted, StateDeclined:
		return true
	}
	return false
}

// Invitee represents a person registered to possibly attend the event.
// Identity fields are immutable after creation.
type Invitee struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Email       string    `db:"email" json:"email,omitempty"`
	Company     string    `db:"company" json:"company,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RSVP holds the attendance answer and preferences for one invitee.
// Preferences are only meaningful while Status is RSVPAttending.
type RSVP struct {
	ID              int64           `db:"id" json:"id"`
	InviteeID       int64           `db:"invitee_id" json:"invitee_id"`
	Status          RSVPStatus      `db:"status" json:"status"`
	FoodPreference  FoodPreference  `db:"food_preference" json:"food_preference,omitempty"`
	DrinkPreference DrinkPreference `db:"drink_preference" json:"drink_preference,omitempty"`
	RespondedAt     sql.NullTime    `db:"responded_at" json:"responded_at,omitempty"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Complete reports whether registration is finished: attending with both
// preferences recorded.
func (r *RSVP) Complete() bool {
	return r.Status == RSVPAttending &&
		r.FoodPreference != FoodUnset &&
		r.DrinkPreference != DrinkUnset
}

// Direction of a logged message relative to the bot.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// DeliveryStatus of a logged message.
type DeliveryStatus string

const (
	StatusReceived DeliveryStatus = "received"
	StatusSent     DeliveryStatus = "sent"
	StatusFailed   DeliveryStatus = "failed"
)

// MessageRecord is an append-only audit entry for every message the bot
// receives or attempts to send. InviteeID is null for unmatched senders.
type MessageRecord struct {
	ID          int64          `db:"id" json:"id"`
	InviteeID   sql.NullInt64  `db:"invitee_id" json:"invitee_id,omitempty"`
	PhoneNumber string         `db:"phone_number" json:"phone_number"`
	Direction   Direction      `db:"direction" json:"direction"`
	Body        string         `db:"message_body" json:"message_body"`
	Status      DeliveryStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// ReminderRecord marks that a reminder of a given kind was sent to an
// invitee; at most one exists per (invitee, kind, calendar day).
type ReminderRecord struct {
	ID           int64     `db:"id" json:"id"`
	InviteeID    int64     `db:"invitee_id" json:"invitee_id"`
	ReminderType string    `db:"reminder_type" json:"reminder_type"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}

// Stats aggregates RSVP answers across all invitees.
type Stats struct {
	TotalInvitees int64 `db:"total_invitees" json:"total_invitees"`
	Attending     int64 `db:"attending" json:"attending"`
	Declined      int64 `db:"declined" json:"declined"`
	Pending       int64 `db:"pending" json:"pending"`
	Vegetarian    int64 `db:"vegetarian" json:"vegetarian"`
	NonVegetarian int64 `db:"non_vegetarian" json:"non_vegetarian"`
	Alcoholic     int64 `db:"alcoholic" json:"alcoholic"`
	NonAlcoholic  int64 `db:"non_alcoholic" json:"non_alcoholic"`
}
