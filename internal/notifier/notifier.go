// Package notifier fans out best-effort, account-scoped signals such as
// "your session list changed" to every connected device of a user.
//
// Delivery is a convenience: a failed publish is logged and dropped, and
// never undoes the session mutation that triggered it.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// EventSessionsChanged tells clients to re-fetch their session list.
const EventSessionsChanged = "sessions:changed"

// DefaultPublishTimeout bounds a single publish attempt.
const DefaultPublishTimeout = 2 * time.Second

// Event is the opaque payload published on a user's channel. It is a
// signal, not a diff.
type Event struct {
	Type string `json:"type"`
}

func SessionsChangedEvent() Event {
	return Event{Type: EventSessionsChanged}
}

// Publisher delivers ev to every subscriber of username's channel.
type Publisher interface {
	Publish(ctx context.Context, username string, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, username string, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, username string, ev Event) error {
	return f(ctx, username, ev)
}

// SessionStore deletes sessions. Every method is scoped to username so a
// caller cannot revoke another account's session.
type SessionStore interface {
	DeleteSession(ctx context.Context, username, sessionID string) error
	DeleteOtherSessions(ctx context.Context, username, keepSessionID string) error
	DeleteAllSessions(ctx context.Context, username string) error
}

// SessionStoreFuncs adapts plain functions to SessionStore. A nil field
// makes the corresponding call a no-op.
type SessionStoreFuncs struct {
	DeleteSessionFn       func(ctx context.Context, username, sessionID string) error
	DeleteOtherSessionsFn func(ctx context.Context, username, keepSessionID string) error
	DeleteAllSessionsFn   func(ctx context.Context, username string) error
}

func (s SessionStoreFuncs) DeleteSession(ctx context.Context, username, sessionID string) error {
	if s.DeleteSessionFn == nil {
		return nil
	}
	return s.DeleteSessionFn(ctx, username, sessionID)
}

func (s SessionStoreFuncs) DeleteOtherSessions(ctx context.Context, username, keepSessionID string) error {
	if s.DeleteOtherSessionsFn == nil {
		return nil
	}
	return s.DeleteOtherSessionsFn(ctx, username, keepSessionID)
}

func (s SessionStoreFuncs) DeleteAllSessions(ctx context.Context, username string) error {
	if s.DeleteAllSessionsFn == nil {
		return nil
	}
	return s.DeleteAllSessionsFn(ctx, username)
}

// Notifier composes session deletion with a best-effort notification.
type Notifier struct {
	publisher Publisher
	sessions  SessionStore
	logger    logging.Logger
	timeout   time.Duration

	inflight sync.WaitGroup
}

type Option func(*Notifier)

// WithTimeout overrides DefaultPublishTimeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func New(publisher Publisher, sessions SessionStore, logger logging.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	n := &Notifier{
		publisher: publisher,
		sessions:  sessions,
		logger:    logger,
		timeout:   DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifySessionsChanged publishes a sessions:changed event for username in
// the background and returns at once.
//
// The publish keeps ctx's values but not its cancellation, and is bounded
// by the notifier timeout. Errors are logged, never returned.
func (n *Notifier) NotifySessionsChanged(ctx context.Context, username string) {
	if n.publisher == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		defer cancel()

		if err := n.publisher.Publish(pctx, username, SessionsChangedEvent()); err != nil {
			n.logger.Warn(pctx, "sessions changed notification dropped", "username", username, "error", err)
		}
	}()
}

// Wait blocks until every publish started so far has finished. Call it on
// shutdown before closing the publisher's connection.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

// RevokeSessionAndNotify deletes one session and then notifies the account.
// A delete failure is returned and nothing is published.
func (n *Notifier) RevokeSessionAndNotify(ctx context.Context, username, sessionID string) error {
	if err := n.sessions.DeleteSession(ctx, username, sessionID); err != nil {
		return err
	}
	n.NotifySessionsChanged(ctx, username)
	return nil
}

// RevokeOtherSessionsAndNotify deletes every session of username except
// keepSessionID, then notifies.
func (n *Notifier) RevokeOtherSessionsAndNotify(ctx context.Context, username, keepSessionID string) error {
	if err := n.sessions.DeleteOtherSessions(ctx, username, keepSessionID); err != nil {
		return err
	}
	n.NotifySessionsChanged(ctx, username)
	return nil
}

// RevokeAllSessionsAndNotify deletes every session of username, then
// notifies.
func (n *Notifier) RevokeAllSessionsAndNotify(ctx context.Context, username string) error {
	if err := n.sessions.DeleteAllSessions(ctx, username); err != nil {
		return err
	}
	n.NotifySessionsChanged(ctx, username)
	return nil
}
