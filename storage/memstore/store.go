// Package memstore is the reference in-memory storage backend. It bounds
// per-stream retention at a hard ceiling, evicting oldest first, under the
// same discipline the stream registry applies to its own log.
package memstore

import (
	"context"
	"sync"

	"github.com/keelmq/keel/event"
)

// DefaultMaxEventsPerStream caps stored events per stream when no explicit
// cap is configured.
const DefaultMaxEventsPerStream = 10_000

// Store implements storage.Backend in memory.
type Store struct {
	mu        sync.RWMutex
	maxEvents int
	events    map[event.StreamName][]event.Event
	subs      map[string]event.Subscription
	offsets   map[offsetKey]event.ID
}

type offsetKey struct {
	subID  string
	stream event.StreamName
}

// Options configures a Store.
type Options struct {
	// MaxEventsPerStream is the hard per-stream ceiling. <= 0 selects
	// DefaultMaxEventsPerStream.
	MaxEventsPerStream int
}

// New returns an empty Store.
func New(opts Options) *Store {
	maxEvents := opts.MaxEventsPerStream
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEventsPerStream
	}
	return &Store{
		maxEvents: maxEvents,
		events:    map[event.StreamName][]event.Event{},
		subs:      map[string]event.Subscription{},
		offsets:   map[offsetKey]event.ID{},
	}
}

// SaveEvent appends the event to the stream's buffer, evicting the oldest
// entries past the ceiling.
func (s *Store) SaveEvent(_ context.Context, stream event.StreamName, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := append(s.events[stream], ev.Clone())
	if len(buf) > s.maxEvents {
		buf = buf[len(buf)-s.maxEvents:]
	}
	s.events[stream] = buf
	return nil
}

// LoadEvents returns up to limit events with id >= from in id order.
func (s *Store) LoadEvents(_ context.Context, stream event.StreamName, from event.ID, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, ev := range s.events[stream] {
		if ev.ID < from {
			continue
		}
		out = append(out, ev.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SaveSubscription stores the subscription, overwriting any previous state
// for the same id.
func (s *Store) SaveSubscription(_ context.Context, sub event.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.Filter = nil
	s.subs[sub.ID] = sub
	return nil
}

// LoadSubscription returns the stored subscription, if any.
func (s *Store) LoadSubscription(_ context.Context, id string) (event.Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	return sub, ok, nil
}

// SaveConsumerOffset records an offset; lower commits than the stored value
// are ignored.
func (s *Store) SaveConsumerOffset(_ context.Context, subID string, stream event.StreamName, id event.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := offsetKey{subID: subID, stream: stream}
	if prev, ok := s.offsets[k]; ok && id <= prev {
		return nil
	}
	s.offsets[k] = id
	return nil
}

// LoadConsumerOffset returns the stored offset, if any.
func (s *Store) LoadConsumerOffset(_ context.Context, subID string, stream event.StreamName) (event.ID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.offsets[offsetKey{subID: subID, stream: stream}]
	return id, ok, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
