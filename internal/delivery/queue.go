// Package delivery serializes all outbound sends through one rate-limited
// FIFO queue. Conversation replies, broadcast invitations and scheduled
// reminders all share the same queue, so the transport only ever sees one
// send in flight and a fixed pause between sends.
package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"event-rsvp-bot/internal/models"
)

// ErrOptionsNotSupported is reported by transports that cannot deliver
// selectable options; the queue then falls back to a numbered text list.
var ErrOptionsNotSupported = errors.New("delivery: transport cannot send selectable options")

// Transport is the outbound half of the chat capability the queue drives.
type Transport interface {
	SendText(ctx context.Context, address, body string) error
	SendMedia(ctx context.Context, address, body, assetPath string) error
	SendOptions(ctx context.Context, address, body string, options []string) error
}

// Recorder persists exactly one audit row per attempted send.
type Recorder interface {
	LogMessage(ctx context.Context, rec models.MessageRecord) error
}

// Kind discriminates the send variants.
type Kind int

const (
	KindText Kind = iota
	KindMedia
	KindOptions
)

// Task is one outbound send. InviteeID may be zero for sends that are not
// tied to a known invitee.
type Task struct {
	Kind      Kind
	InviteeID int64
	Address   string
	Body      string
	AssetPath string
	Options   []string
}

// Pending resolves once the task's send attempt has completed.
type Pending struct {
	done chan error
}

// NewPending returns an unresolved Pending. Exposed so callers that stub the
// queue in tests can satisfy the Enqueue contract.
func NewPending() *Pending {
	return &Pending{done: make(chan error, 1)}
}

func (p *Pending) finish(err error) {
	p.done <- err
}

// Wait blocks until the send attempt completed or ctx is done. A nil return
// means the transport accepted the message; sends are otherwise
// at-least-once/best-effort and most producers never call Wait.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queued struct {
	task    Task
	pending *Pending
}

// Queue is the single ordered outbound channel.
type Queue struct {
	transport Transport
	recorder  Recorder
	delay     time.Duration
	tasks     chan queued
	log       zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewQueue(transport Transport, recorder Recorder, delay time.Duration, log zerolog.Logger) *Queue {
	return &Queue{
		transport: transport,
		recorder:  recorder,
		delay:     delay,
		tasks:     make(chan queued, 256),
		log:       log.With().Str("component", "delivery").Logger(),
	}
}

// Enqueue submits a task. Tasks complete strictly in submission order.
func (q *Queue) Enqueue(task Task) *Pending {
	item := queued{task: task, pending: NewPending()}
	q.tasks <- item
	return item.pending
}

// Start launches the worker goroutine. Idempotent while running.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		q.log.Warn().Msg("Queue is already running")
		return
	}
	q.running = true
	q.stopChan = make(chan struct{})
	q.doneChan = make(chan struct{})
	q.mu.Unlock()

	go q.run(ctx)
}

// Stop halts the worker after the in-flight task, leaving queued tasks
// unprocessed.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	stopChan := q.stopChan
	doneChan := q.doneChan
	q.mu.Unlock()

	close(stopChan)
	<-doneChan
	q.log.Info().Msg("Delivery queue stopped")
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case item := <-q.tasks:
			err := q.send(ctx, item.task)
			q.record(ctx, item.task, err)
			item.pending.finish(err)

			if err != nil {
				// Failure never aborts queue processing.
				q.log.Error().Err(err).Str("address", item.task.Address).Msg("Send failed")
			}

			select {
			case <-time.After(q.delay):
			case <-ctx.Done():
				return
			case <-q.stopChan:
				return
			}
		}
	}
}

func (q *Queue) send(ctx context.Context, task Task) error {
	switch task.Kind {
	case KindMedia:
		return q.transport.SendMedia(ctx, task.Address, task.Body, task.AssetPath)
	case KindOptions:
		err := q.transport.SendOptions(ctx, task.Address, task.Body, task.Options)
		if errors.Is(err, ErrOptionsNotSupported) {
			// Degrade to a plain text send listing the options as a
			// numbered sequence.
			return q.transport.SendText(ctx, task.Address, optionsAsText(task.Body, task.Options))
		}
		return err
	default:
		return q.transport.SendText(ctx, task.Address, task.Body)
	}
}

func (q *Queue) record(ctx context.Context, task Task, sendErr error) {
	status := models.StatusSent
	if sendErr != nil {
		status = models.StatusFailed
	}

	rec := models.MessageRecord{
		PhoneNumber: task.Address,
		Direction:   models.DirectionOutgoing,
		Body:        auditBody(task),
		Status:      status,
	}
	if task.InviteeID != 0 {
		rec.InviteeID = sql.NullInt64{Int64: task.InviteeID, Valid: true}
	}

	if err := q.recorder.LogMessage(ctx, rec); err != nil {
		q.log.Error().Err(err).Str("address", task.Address).Msg("Failed to log message")
	}
}

func optionsAsText(body string, options []string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return b.String()
}

func auditBody(task Task) string {
	switch task.Kind {
	case KindMedia:
		return fmt.Sprintf("%s [media: %s]", task.Body, task.AssetPath)
	case KindOptions:
		return fmt.Sprintf("%s [options: %s]", task.Body, strings.Join(task.Options, ", "))
	default:
		return task.Body
	}
}
