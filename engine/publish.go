package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keelmq/keel/event"
	logpkg "github.com/keelmq/keel/pkg/log"
)

// Publish is the single validated entry point for all producers. Order is
// fixed: size validation, id/timestamp assignment, stream append plus
// retention, persistence write, topic fan-out, queue enqueue, metrics.
// Only size and serialization failures abort the call; persistence and
// delivery failures are logged and the publish still succeeds — the
// contract is "the stream accepted it".
func (e *Engine) Publish(ctx context.Context, ev event.Event) (event.ID, error) {
	s, ok := e.lookupStream(ev.Stream)
	if !ok {
		return 0, fmt.Errorf("publish to %q: %w", ev.Stream, ErrNotFound)
	}

	size, err := e.validateSize(&ev)
	if err != nil {
		return 0, err
	}

	// An event carrying an id the stream already sequenced is a
	// re-publication: it is routed to its topic/queue below but not appended
	// or persisted again, so log ids stay unique.
	if s.append(&ev, size, time.Now()) {
		if err := e.store.SaveEvent(ctx, ev.Stream, ev); err != nil {
			e.counters.failed.Add(1)
			e.logger.Warn("persist event failed",
				logpkg.F("stream", string(ev.Stream)),
				logpkg.F("id", uint64(ev.ID)),
				logpkg.Err(err))
		}
	}

	// Routing legs are independent: a missing or failing topic never stops
	// the queue leg, and neither fails the publish.
	if ev.Topic != "" {
		if t, ok := e.lookupTopic(ev.Topic); ok {
			t.broadcast(ev, &e.counters)
		} else {
			e.counters.failed.Add(1)
			e.logger.Warn("fan-out skipped: topic not found",
				logpkg.F("topic", string(ev.Topic)),
				logpkg.F("id", uint64(ev.ID)))
		}
	}
	if ev.Queue != "" {
		if q, ok := e.lookupQueue(ev.Queue); ok {
			q.enqueue(ev, size, e)
		} else {
			e.counters.failed.Add(1)
			e.logger.Warn("enqueue skipped: queue not found",
				logpkg.F("queue", string(ev.Queue)),
				logpkg.F("id", uint64(ev.ID)))
		}
	}

	e.counters.published.Add(1)
	return ev.ID, nil
}

// validateSize checks payload and whole-event serialized sizes against the
// configured caps before any mutation. Returns the whole-event size for the
// retention estimators downstream.
func (e *Engine) validateSize(ev *event.Event) (int, error) {
	if ev.Payload != nil && e.cfg.MaxPayloadBytes > 0 {
		body, err := json.Marshal(ev.Payload)
		if err != nil {
			return 0, fmt.Errorf("%w: payload: %v", ErrSerialization, err)
		}
		if len(body) > e.cfg.MaxPayloadBytes {
			return 0, fmt.Errorf("%w: payload %d bytes exceeds %d", ErrTooLarge, len(body), e.cfg.MaxPayloadBytes)
		}
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("%w: event: %v", ErrSerialization, err)
	}
	if e.cfg.MaxMessageBytes > 0 && len(body) > e.cfg.MaxMessageBytes {
		return 0, fmt.Errorf("%w: event %d bytes exceeds %d", ErrTooLarge, len(body), e.cfg.MaxMessageBytes)
	}
	return len(body), nil
}
