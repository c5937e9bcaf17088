// Package repository persists service requests and their conversations and exposes live,
// snapshot-based subscriptions over them.
package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

// Store binds the repositories to a database handle and a change broker. A Store created
// by Transaction defers event publication until the surrounding transaction commits.
type Store struct {
	db     *gorm.DB
	broker changefeed.Broker
	now    func() time.Time

	pending *pendingEvents
}

type pendingEvents struct {
	mu     sync.Mutex
	events []changefeed.Event
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the server timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a Store. A nil broker falls back to an in-process broker.
func NewStore(db *gorm.DB, broker changefeed.Broker, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("repository: db is required")
	}
	if broker == nil {
		broker = changefeed.NewMemoryBroker()
	}
	store := &Store{db: db, broker: broker, now: database.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// DB exposes the underlying handle (the transaction handle inside Transaction).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Broker returns the change broker.
func (s *Store) Broker() changefeed.Broker {
	return s.broker
}

// Now returns a server-assigned timestamp.
func (s *Store) Now() time.Time {
	return s.now()
}

// Requests returns the request repository bound to this store.
func (s *Store) Requests() *RequestRepository {
	return &RequestRepository{store: s}
}

// Messages returns the message repository bound to this store.
func (s *Store) Messages() *MessageRepository {
	return &MessageRepository{store: s}
}

// InTransaction reports whether s is bound to an open transaction.
func (s *Store) InTransaction() bool {
	return s.pending != nil
}

// Transaction runs fn atomically. Every write performed through the Store handed to fn
// commits together or not at all; change events are published only after commit.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.pending != nil {
		return fn(s)
	}

	pending := &pendingEvents{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, broker: s.broker, now: s.now, pending: pending})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, pending.events...)
	return nil
}

// Emit records events for publication: immediately outside a transaction, after commit
// inside one.
func (s *Store) Emit(ctx context.Context, events ...changefeed.Event) {
	if len(events) == 0 {
		return
	}
	if s.pending != nil {
		s.pending.mu.Lock()
		s.pending.events = append(s.pending.events, events...)
		s.pending.mu.Unlock()
		return
	}
	s.publish(ctx, events...)
}

func (s *Store) publish(ctx context.Context, events ...changefeed.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.broker.Publish(context.WithoutCancel(ctx), events...); err != nil {
		logger.WithModule("repository").Warn("publish change events", zap.Int("events", len(events)), zap.Error(err))
	}
}

func requestEvents(kind string, req *requestKeys) []changefeed.Event {
	events := []changefeed.Event{
		{Topic: changefeed.RequestTopic(req.ID), Kind: kind, ID: req.ID},
		{Topic: changefeed.CustomerTopic(req.UserID), Kind: kind, ID: req.ID},
	}
	if req.VendorID != "" {
		events = append(events, changefeed.Event{Topic: changefeed.VendorTopic(req.VendorID), Kind: kind, ID: req.ID})
	}
	return events
}

type requestKeys struct {
	ID       string
	UserID   string
	VendorID string
}
