// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-content-sync/models"
)

// EventBroker fans record state changes out to subscribers.
//
// Publish never blocks: every subscriber owns an unbounded queue that keeps
// only the newest event per content id, so a slow consumer sees the latest
// state of each record instead of holding the engine back.
type EventBroker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[*Subscription]struct{})}
}

// Publish delivers e to every current subscriber.
func (b *EventBroker) Publish(e models.Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(e)
	}
}

// Subscribe registers a new subscriber. Close it when done.
func (b *EventBroker) Subscribe() *Subscription {
	s := &Subscription{
		broker: b,
		latest: make(map[string]models.Event),
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	return s
}

// Subscribers returns the number of open subscriptions.
func (b *EventBroker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *EventBroker) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	broker *EventBroker

	mu     sync.Mutex
	order  []string
	latest map[string]models.Event

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) push(e models.Event) {
	s.mu.Lock()
	if _, queued := s.latest[e.ContentID]; !queued {
		s.order = append(s.order, e.ContentID)
	}
	s.latest[e.ContentID] = e
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next returns the oldest undelivered event, waiting for one if needed.
func (s *Subscription) Next(ctx context.Context) (models.Event, error) {
	for {
		if e, ok := s.pop(); ok {
			return e, nil
		}

		select {
		case <-s.ready:
		case <-s.closed:
			return models.Event{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return models.Event{}, ctx.Err()
		}
	}
}

func (s *Subscription) pop() (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return models.Event{}, false
	}

	id := s.order[0]
	s.order = s.order[1:]
	e := s.latest[id]
	delete(s.latest, id)

	return e, true
}

// Pending returns the number of events waiting to be read.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.broker.remove(s)
	})
}
