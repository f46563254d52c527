package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/keelmq/keel/event"
)

// Store implements storage.Backend on Pebble.
type Store struct {
	db *DB
}

// Open creates or opens a Pebble-backed store.
func Open(opts Options) (*Store, error) {
	db, err := OpenDB(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open DB. The caller retains ownership of db.
func NewStore(db *DB) *Store { return &Store{db: db} }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveEvent persists the event under its big-endian id key.
func (s *Store) SaveEvent(ctx context.Context, stream event.StreamName, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEvent(string(stream), uint64(ev.ID)), encodeRecord(body), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// LoadEvents scans the stream's keyspace from the given id. Records failing
// the crc check are skipped.
func (s *Store) LoadEvents(_ context.Context, stream event.StreamName, from event.ID, limit int) ([]event.Event, error) {
	low := keyEvent(string(stream), uint64(from))
	hi := keyEvent(string(stream), ^uint64(0))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []event.Event
	for ok := iter.First(); ok; ok = iter.Next() {
		body, okDec := decodeRecord(iter.Value())
		if !okDec {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SaveSubscription persists the subscription as JSON.
func (s *Store) SaveSubscription(_ context.Context, sub event.Subscription) error {
	sub.Filter = nil
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}
	return s.db.Set(keySubscription(sub.ID), encodeRecord(body))
}

// LoadSubscription returns the stored subscription, if any.
func (s *Store) LoadSubscription(_ context.Context, id string) (event.Subscription, bool, error) {
	val, err := s.db.Get(keySubscription(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return event.Subscription{}, false, nil
		}
		return event.Subscription{}, false, err
	}
	body, ok := decodeRecord(val)
	if !ok {
		return event.Subscription{}, false, errors.New("pebblestore: corrupt subscription record")
	}
	var sub event.Subscription
	if err := json.Unmarshal(body, &sub); err != nil {
		return event.Subscription{}, false, err
	}
	return sub, true, nil
}

// SaveConsumerOffset stores the offset idempotently: commits lower than the
// stored value are ignored.
func (s *Store) SaveConsumerOffset(_ context.Context, subID string, stream event.StreamName, id event.ID) error {
	key := keyCursor(subID, string(stream))
	if cur, err := s.db.Get(key); err == nil && len(cur) >= 8 {
		if uint64(id) <= binary.BigEndian.Uint64(cur[:8]) {
			return nil
		}
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return s.db.Set(key, b[:])
}

// LoadConsumerOffset returns the stored offset, if any.
func (s *Store) LoadConsumerOffset(_ context.Context, subID string, stream event.StreamName) (event.ID, bool, error) {
	val, err := s.db.Get(keyCursor(subID, string(stream)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(val) < 8 {
		return 0, false, nil
	}
	return event.ID(binary.BigEndian.Uint64(val[:8])), true, nil
}
