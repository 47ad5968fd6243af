// Package reminder sends day-counted reminders to confirmed attendees and
// keeps them deduplicated per invitee, kind and calendar day.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"event-rsvp-bot/internal/delivery"
	"event-rsvp-bot/internal/messages"
	"event-rsvp-bot/internal/models"
)

type reminderStore interface {
	ListAttending(ctx context.Context) ([]models.Invitee, error)
	ReminderSentToday(ctx context.Context, inviteeID int64, kind string) (bool, error)
	RecordReminder(ctx context.Context, inviteeID int64, kind string) error
}

type outbox interface {
	Enqueue(task delivery.Task) *delivery.Pending
}

// Summary reports the outcome of one reminder pass.
type Summary struct {
	Sent     int `json:"sent"`
	Total    int `json:"total"`
	DaysLeft int `json:"days_left"`
}

// Service runs reminder passes against the attending invitees.
type Service struct {
	store     reminderStore
	queue     outbox
	catalog   *messages.Catalog
	eventDate time.Time
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(store reminderStore, queue outbox, catalog *messages.Catalog, eventDate time.Time, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		queue:     queue,
		catalog:   catalog,
		eventDate: eventDate,
		now:       time.Now,
		log:       log.With().Str("component", "reminder").Logger(),
	}
}

// DaysUntilEvent returns the whole calendar-day difference between today and
// the event date, with time-of-day truncated to midnight on both sides.
func DaysUntilEvent(today, eventDate time.Time) int {
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(eventDate.Year(), eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(t).Hours() / 24)
}

// Kind derives the reminder-kind tag for a day count. One tag per day count
// keeps the per-day dedup records distinct across the countdown.
func Kind(daysLeft int) string {
	return fmt.Sprintf("reminder_%d_days", daysLeft)
}

// DaysLeft returns the current whole-day countdown to the event.
func (s *Service) DaysLeft() int {
	return DaysUntilEvent(s.now(), s.eventDate)
}

// Run performs one reminder pass. It is safe to trigger twice on the same
// day: the per-day dedup record, written at enqueue time, is the idempotence
// mechanism.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	daysLeft := DaysUntilEvent(s.now(), s.eventDate)
	s.log.Info().Int("days_left", daysLeft).Msg("Starting reminder pass")

	if daysLeft < 0 {
		s.log.Info().Msg("Event has passed, no reminders to send")
		return Summary{DaysLeft: daysLeft}, nil
	}

	attendees, err := s.store.ListAttending(ctx)
	if err != nil {
		return Summary{DaysLeft: daysLeft}, fmt.Errorf("failed to list attendees: %w", err)
	}

	kind := Kind(daysLeft)
	summary := Summary{Total: len(attendees), DaysLeft: daysLeft}

	for i := range attendees {
		attendee := attendees[i]

		alreadySent, err := s.store.ReminderSentToday(ctx, attendee.ID, kind)
		if err != nil {
			s.log.Error().Err(err).Str("name", attendee.Name).Msg("Failed to check reminder dedup")
			continue
		}
		if alreadySent {
			s.log.Debug().Str("name", attendee.Name).Msg("Reminder already sent today")
			continue
		}

		s.queue.Enqueue(delivery.Task{
			Kind:      delivery.KindText,
			InviteeID: attendee.ID,
			Address:   attendee.PhoneNumber,
			Body:      s.catalog.Reminder(daysLeft),
		})

		if err := s.store.RecordReminder(ctx, attendee.ID, kind); err != nil {
			s.log.Error().Err(err).Str("name", attendee.Name).Msg("Failed to record reminder")
			continue
		}
		summary.Sent++
	}

	s.log.Info().Int("sent", summary.Sent).Int("total", summary.Total).Msg("Reminder pass completed")
	return summary, nil
}
