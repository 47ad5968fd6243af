package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler triggers a reminder pass once a day at a fixed hour.
type Scheduler struct {
	service *Service
	hour    int
	log     zerolog.Logger

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	doneChan  chan struct{}
	lastRunAt time.Time
}

func NewScheduler(service *Service, hour int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		hour:    hour,
		log:     log.With().Str("component", "reminder-scheduler").Logger(),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("Scheduler is already running")
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	s.log.Info().Int("hour", s.hour).Msg("Starting reminder scheduler")
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan
	s.log.Info().Msg("Reminder scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneChan)

	for {
		wait := time.Until(s.nextRun(s.service.now()))
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			s.mu.Lock()
			s.lastRunAt = s.service.now()
			s.mu.Unlock()

			if _, err := s.service.Run(ctx); err != nil {
				s.log.Error().Err(err).Msg("Scheduled reminder pass failed")
			}

		case <-s.stopChan:
			timer.Stop()
			return

		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next occurrence of the configured hour, strictly after
// now so a pass that finishes within the same hour does not refire.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
