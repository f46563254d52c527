// Package storage defines the persistence port the engine depends on. The
// engine core never touches a concrete store; a Backend is injected at
// construction. Package memstore provides the bounded in-memory reference
// implementation, package pebblestore the durable production backend.
package storage

import (
	"context"

	"github.com/keelmq/keel/event"
)

// Backend is the durability contract: events by stream, subscriptions by id,
// and consumer offsets by (subscription, stream). Implementations must be
// safe for concurrent use.
type Backend interface {
	// SaveEvent persists one published event for its stream.
	SaveEvent(ctx context.Context, stream event.StreamName, ev event.Event) error
	// LoadEvents returns up to limit events with id >= from, in id order.
	// A limit <= 0 means no limit.
	LoadEvents(ctx context.Context, stream event.StreamName, from event.ID, limit int) ([]event.Event, error)

	// SaveSubscription persists a subscription declaration.
	SaveSubscription(ctx context.Context, sub event.Subscription) error
	// LoadSubscription returns the subscription and whether it exists.
	LoadSubscription(ctx context.Context, id string) (event.Subscription, bool, error)

	// SaveConsumerOffset records the last acknowledged event id for a
	// subscription on a stream. Commits are idempotent: a lower offset than
	// the stored one is ignored.
	SaveConsumerOffset(ctx context.Context, subID string, stream event.StreamName, id event.ID) error
	// LoadConsumerOffset returns the stored offset and whether one exists.
	LoadConsumerOffset(ctx context.Context, subID string, stream event.StreamName) (event.ID, bool, error)

	// Close releases backend resources.
	Close() error
}
