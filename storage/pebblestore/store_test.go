package pebblestore

import (
	"context"
	"testing"

	"github.com/keelmq/keel/event"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestEventsDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	for i := 1; i <= 5; i++ {
		ev := event.Event{
			ID:      event.ID(i),
			Stream:  "orders",
			Type:    "order.created",
			Payload: map[string]any{"n": float64(i)},
		}
		if err := s.SaveEvent(ctx, "orders", ev); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = openTestStore(t, dir)
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.LoadEvents(ctx, "orders", 1, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("want 5 events after reopen, got %d", len(got))
	}
	for i, ev := range got {
		if ev.ID != event.ID(i+1) {
			t.Fatalf("at %d: want id %d, got %d", i, i+1, ev.ID)
		}
		if ev.Type != "order.created" {
			t.Fatalf("type lost across reopen: %q", ev.Type)
		}
	}
}

func TestLoadEventsFromAndLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })

	for i := 1; i <= 10; i++ {
		if err := s.SaveEvent(ctx, "s", event.Event{ID: event.ID(i), Stream: "s"}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := s.LoadEvents(ctx, "s", 4, 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 || got[0].ID != 4 || got[2].ID != 6 {
		t.Fatalf("want ids 4..6, got %v", got)
	}
}

func TestStreamsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })

	if err := s.SaveEvent(ctx, "a", event.Event{ID: 1, Stream: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveEvent(ctx, "b", event.Event{ID: 1, Stream: "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadEvents(ctx, "a", 0, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Stream != "a" {
		t.Fatalf("stream a leaked foreign events: %v", got)
	}
}

func TestSubscriptionRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })

	sub := event.Subscription{
		ID:        "sub-1",
		Stream:    "orders",
		Filter:    event.EventType("order.created"),
		BatchSize: 25,
		Offset:    event.Offset{Kind: event.OffsetFromID, ID: 7},
	}
	if err := s.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadSubscription(ctx, "sub-1")
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if got.Stream != "orders" || got.BatchSize != 25 || got.Offset.ID != 7 {
		t.Fatalf("unexpected subscription: %+v", got)
	}
	if got.Filter != nil {
		t.Fatalf("filters are not persisted")
	}
	if _, ok, err := s.LoadSubscription(ctx, "nope"); ok || err != nil {
		t.Fatalf("unknown id: ok=%v err=%v", ok, err)
	}
}

func TestConsumerOffsetIdempotentAndDurable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	if _, ok, _ := s.LoadConsumerOffset(ctx, "sub-1", "s"); ok {
		t.Fatalf("offset present before any commit")
	}
	if err := s.SaveConsumerOffset(ctx, "sub-1", "s", 8); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveConsumerOffset(ctx, "sub-1", "s", 3); err != nil {
		t.Fatalf("lower commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = openTestStore(t, dir)
	t.Cleanup(func() { _ = s.Close() })
	id, ok, err := s.LoadConsumerOffset(ctx, "sub-1", "s")
	if err != nil || !ok || id != 8 {
		t.Fatalf("want offset 8 after reopen, got %d (ok=%v err=%v)", id, ok, err)
	}
}

func TestRecordRoundtripAndCorruptionDetected(t *testing.T) {
	body := []byte(`{"id":1}`)
	rec := encodeRecord(body)
	got, ok := decodeRecord(rec)
	if !ok || string(got) != string(body) {
		t.Fatalf("roundtrip failed: %q %v", got, ok)
	}
	rec[0] ^= 0xff
	if _, ok := decodeRecord(rec); ok {
		t.Fatalf("corrupted record passed the crc check")
	}
	if _, ok := decodeRecord([]byte{1, 2}); ok {
		t.Fatalf("short record accepted")
	}
}
