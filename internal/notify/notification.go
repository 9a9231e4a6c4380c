// Package notify delivers user notifications. Every channel implements
// Dispatcher; Multi fans one notification out to several channels.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"walletlens/internal/log"
)

// Kind classifies a notification
type Kind string

const (
	KindReminder      Kind = "reminder"
	KindBudgetWarning Kind = "budget_warning"
	KindGeneral       Kind = "general"
)

// Notification is a user-facing message
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RefID     int64     `json:"ref_id,omitempty"` // reminder or budget id
	CreatedAt time.Time `json:"created_at"`
}

// New builds a notification with a fresh id
func New(kind Kind, title, body string, refID int64) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		RefID:     refID,
		CreatedAt: time.Now().UTC(),
	}
}

// Dispatcher delivers a notification to one channel
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, n Notification) error

func (f DispatcherFunc) Dispatch(ctx context.Context, n Notification) error { return f(ctx, n) }

var ErrNoChannels = errors.New("no notification channels configured")

// Multi delivers to every channel. A notification counts as delivered when
// at least one channel accepted it; failures of the others are logged.
type Multi struct {
	channels []Dispatcher
	logger   *log.Logger
}

func NewMulti(logger *log.Logger, channels ...Dispatcher) *Multi {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Multi{channels: channels, logger: logger.WithComponent(log.ComponentNotify)}
}

func (m *Multi) Dispatch(ctx context.Context, n Notification) error {
	if len(m.channels) == 0 {
		return ErrNoChannels
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Dispatch(ctx, n); err != nil {
			m.logger.WarnContext(ctx, "Notification channel failed",
				log.FieldNotification, n.ID, log.FieldError, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.channels) {
		return errors.Join(errs...)
	}
	return nil
}

// Log writes notifications to the structured log
type Log struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Log{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *Log) Dispatch(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "Notification",
		log.FieldNotification, n.ID,
		"kind", string(n.Kind),
		"title", n.Title,
		"body", n.Body,
		"ref_id", n.RefID)
	return nil
}

// Recorder keeps notifications in memory. Used by the CLI dry runs and tests.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Dispatch(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
	return nil
}

// Drain returns everything dispatched so far and clears the recorder
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list
	r.list = nil
	return out
}
