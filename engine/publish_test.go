package engine

import (
	"context"
	"errors"
	"testing"

	cfgpkg "github.com/keelmq/keel/config"
	"github.com/keelmq/keel/event"
	logpkg "github.com/keelmq/keel/pkg/log"
	"github.com/keelmq/keel/storage/memstore"
)

func TestPublishRejectsOversizedPayload(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxPayloadBytes = 64
	eng := New(Options{Config: cfg, Store: memstore.New(memstore.Options{}), Logger: logpkg.Nop()})
	t.Cleanup(func() { _ = eng.Close() })
	if err := eng.CreateStream(StreamSpec{Name: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	big := event.Event{Stream: "s", Type: "t", Payload: map[string]any{"pad": string(make([]byte, 128))}}
	if _, err := eng.Publish(context.Background(), big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
	// zero side effects
	if evs, _ := eng.Events("s"); len(evs) != 0 {
		t.Fatalf("rejected event was appended")
	}
	if m := eng.Metrics(); m.Published != 0 {
		t.Fatalf("rejected event counted as published")
	}
}

func TestPublishRejectsOversizedEvent(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxMessageBytes = 96
	cfg.MaxPayloadBytes = 1 << 20
	eng := New(Options{Config: cfg, Store: memstore.New(memstore.Options{}), Logger: logpkg.Nop()})
	t.Cleanup(func() { _ = eng.Close() })
	if err := eng.CreateStream(StreamSpec{Name: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := event.Event{Stream: "s", Type: "t", Headers: map[string]string{"pad": string(make([]byte, 256))}}
	if _, err := eng.Publish(context.Background(), ev); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
}

func TestPublishSerializationFailure(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.CreateStream(StreamSpec{Name: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := event.Event{Stream: "s", Type: "t", Payload: map[string]any{"bad": make(chan int)}}
	if _, err := eng.Publish(context.Background(), ev); !errors.Is(err, ErrSerialization) {
		t.Fatalf("want ErrSerialization, got %v", err)
	}
}

func TestPublishRoutesToTopicAndQueueIndependently(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.CreateStream(StreamSpec{Name: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := eng.CreateQueue(QueueSpec{Name: "q", Stream: "s"}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	// topic is missing: the queue leg must still run and publish must succeed
	id, err := eng.Publish(context.Background(), event.Event{Stream: "s", Topic: "missing", Queue: "q", Type: "t"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != 1 {
		t.Fatalf("want id 1, got %d", id)
	}
	got, err := eng.ReceiveFromQueue("q", 1, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("queue leg skipped: %v %d", err, len(got))
	}
	if m := eng.Metrics(); m.Failed == 0 {
		t.Fatalf("missing topic should count as a failure")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.CreateStream(StreamSpec{Name: "s"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := eng.Publish(context.Background(), event.Event{Stream: "s", Type: "t"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	m := eng.Metrics()
	if m.Published != 3 || m.Streams != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}
