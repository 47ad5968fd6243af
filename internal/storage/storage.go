// Package storage persists invitees, RSVP answers, conversation states and
// the append-only message/reminder logs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"event-rsvp-bot/internal/models"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

const schema = `
CREATE TABLE IF NOT EXISTS invitees (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	phone_number TEXT NOT NULL UNIQUE,
	email        TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rsvp_responses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	invitee_id       INTEGER NOT NULL UNIQUE REFERENCES invitees(id) ON DELETE CASCADE,
	status           TEXT NOT NULL DEFAULT 'pending',
	food_preference  TEXT NOT NULL DEFAULT '',
	drink_preference TEXT NOT NULL DEFAULT '',
	responded_at     TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_states (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	invitee_id      INTEGER NOT NULL UNIQUE REFERENCES invitees(id) ON DELETE CASCADE,
	current_state   TEXT NOT NULL,
	last_message_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- message_log and reminders_sent reference invitees weakly: audit rows
-- survive invitee deletion.
CREATE TABLE IF NOT EXISTS message_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	invitee_id   INTEGER,
	phone_number TEXT NOT NULL,
	direction    TEXT NOT NULL,
	message_body TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reminders_sent (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	invitee_id    INTEGER NOT NULL,
	reminder_type TEXT NOT NULL,
	sent_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_message_log_phone ON message_log(phone_number);
CREATE INDEX IF NOT EXISTS idx_reminders_sent_invitee ON reminders_sent(invitee_id, reminder_type);
`

// Store wraps the SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Foreign keys are enabled on the connection.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway; a single pooled connection avoids
	// lock contention and keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateInvitee inserts a new invitee. The phone number must already be
// canonicalized by the caller.
func (s *Store) CreateInvitee(ctx context.Context, name, phoneNumber, email, company string) (*models.Invitee, error) {
	query := `
		INSERT INTO invitees (name, phone_number, email, company)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query, name, phoneNumber, email, company)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.InviteeByID(ctx, id)
}

func (s *Store) InviteeByID(ctx context.Context, id int64) (*models.Invitee, error) {
	var inv models.Invitee
	err := s.db.GetContext(ctx, &inv, `SELECT * FROM invitees WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitee: %w", err)
	}
	return &inv, nil
}

func (s *Store) InviteeByPhone(ctx context.Context, phoneNumber string) (*models.Invitee, error) {
	var inv models.Invitee
	err := s.db.GetContext(ctx, &inv, `SELECT * FROM invitees WHERE phone_number = ?`, phoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitee by phone: %w", err)
	}
	return &inv, nil
}

func (s *Store) ListInvitees(ctx context.Context) ([]models.Invitee, error) {
	var invitees []models.Invitee
	query := `SELECT * FROM invitees ORDER BY name`
	if err := s.db.SelectContext(ctx, &invitees, query); err != nil {
		return nil, fmt.Errorf("failed to list invitees: %w", err)
	}
	return invitees, nil
}

// ListAttending returns all invitees whose RSVP status is attending.
func (s *Store) ListAttending(ctx context.Context) ([]models.Invitee, error) {
	var invitees []models.Invitee
	query := `
		SELECT i.*
		FROM invitees i
		INNER JOIN rsvp_responses r ON i.id = r.invitee_id
		WHERE r.status = 'attending'
		ORDER BY i.name
	`
	if err := s.db.SelectContext(ctx, &invitees, query); err != nil {
		return nil, fmt.Errorf("failed to list attending invitees: %w", err)
	}
	return invitees, nil
}

// UpsertRSVPStatus creates the invitee's RSVP row on first response or
// updates the status of an existing one, stamping responded_at.
func (s *Store) UpsertRSVPStatus(ctx context.Context, inviteeID int64, status models.RSVPStatus) error {
	query := `
		INSERT INTO rsvp_responses (invitee_id, status, responded_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(invitee_id) DO UPDATE SET
			status = excluded.status,
			responded_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, inviteeID, status); err != nil {
		return fmt.Errorf("failed to upsert rsvp status: %w", err)
	}
	return nil
}

func (s *Store) SetFoodPreference(ctx context.Context, inviteeID int64, pref models.FoodPreference) error {
	query := `
		UPDATE rsvp_responses
		SET food_preference = ?, updated_at = CURRENT_TIMESTAMP
		WHERE invitee_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, pref, inviteeID); err != nil {
		return fmt.Errorf("failed to set food preference: %w", err)
	}
	return nil
}

func (s *Store) SetDrinkPreference(ctx context.Context, inviteeID int64, pref models.DrinkPreference) error {
	query := `
		UPDATE rsvp_responses
		SET drink_preference = ?, updated_at = CURRENT_TIMESTAMP
		WHERE invitee_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, pref, inviteeID); err != nil {
		return fmt.Errorf("failed to set drink preference: %w", err)
	}
	return nil
}

func (s *Store) RSVPByInvitee(ctx context.Context, inviteeID int64) (*models.RSVP, error) {
	var rsvp models.RSVP
	err := s.db.GetContext(ctx, &rsvp, `SELECT * FROM rsvp_responses WHERE invitee_id = ?`, inviteeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return &rsvp, nil
}

// State returns the invitee's conversation state, defaulting to INITIAL when
// no state has been persisted yet.
func (s *Store) State(ctx context.Context, inviteeID int64) (models.ConversationState, error) {
	var state models.ConversationState
	query := `SELECT current_state FROM conversation_states WHERE invitee_id = ?`
	err := s.db.GetContext(ctx, &state, query, inviteeID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StateInitial, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation state: %w", err)
	}
	return state, nil
}

func (s *Store) SetState(ctx context.Context, inviteeID int64, state models.ConversationState) error {
	query := `
		INSERT INTO conversation_states (invitee_id, current_state)
		VALUES (?, ?)
		ON CONFLICT(invitee_id) DO UPDATE SET
			current_state = excluded.current_state,
			last_message_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, inviteeID, state); err != nil {
		return fmt.Errorf("failed to set conversation state: %w", err)
	}
	return nil
}

// LogMessage appends one audit row. Records are never mutated afterwards.
func (s *Store) LogMessage(ctx context.Context, rec models.MessageRecord) error {
	query := `
		INSERT INTO message_log (invitee_id, phone_number, direction, message_body, status)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, rec.InviteeID, rec.PhoneNumber, rec.Direction, rec.Body, rec.Status)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

func (s *Store) MessagesByPhone(ctx context.Context, phoneNumber string, limit int) ([]models.MessageRecord, error) {
	var records []models.MessageRecord
	query := `
		SELECT * FROM message_log
		WHERE phone_number = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	if err := s.db.SelectContext(ctx, &records, query, phoneNumber, limit); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return records, nil
}

// ReminderSentToday reports whether a reminder of the given kind was already
// recorded for the invitee today. This is the idempotence mechanism for
// repeated reminder runs on the same calendar day.
func (s *Store) ReminderSentToday(ctx context.Context, inviteeID int64, kind string) (bool, error) {
	var id int64
	query := `
		SELECT id FROM reminders_sent
		WHERE invitee_id = ? AND reminder_type = ?
		AND DATE(sent_at) = DATE('now')
	`
	err := s.db.GetContext(ctx, &id, query, inviteeID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check reminder: %w", err)
	}
	return true, nil
}

func (s *Store) RecordReminder(ctx context.Context, inviteeID int64, kind string) error {
	query := `INSERT INTO reminders_sent (invitee_id, reminder_type) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, inviteeID, kind); err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	return nil
}

// Stats aggregates RSVP answers across all invitees.
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT
			COUNT(DISTINCT i.id) AS total_invitees,
			COALESCE(SUM(CASE WHEN r.status = 'attending' THEN 1 ELSE 0 END), 0) AS attending,
			COALESCE(SUM(CASE WHEN r.status = 'declined' THEN 1 ELSE 0 END), 0)  AS declined,
			COALESCE(SUM(CASE WHEN r.status = 'pending' OR r.status IS NULL THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN r.food_preference = 'vegetarian' THEN 1 ELSE 0 END), 0)      AS vegetarian,
			COALESCE(SUM(CASE WHEN r.food_preference = 'non-vegetarian' THEN 1 ELSE 0 END), 0)  AS non_vegetarian,
			COALESCE(SUM(CASE WHEN r.drink_preference = 'alcoholic' THEN 1 ELSE 0 END), 0)      AS alcoholic,
			COALESCE(SUM(CASE WHEN r.drink_preference = 'non-alcoholic' THEN 1 ELSE 0 END), 0)  AS non_alcoholic
		FROM invitees i
		LEFT JOIN rsvp_responses r ON i.id = r.invitee_id
	`

	var stats models.Stats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}
