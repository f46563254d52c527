package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keelmq/keel/event"
	logpkg "github.com/keelmq/keel/pkg/log"
)

// Consumer is a running subscription. Events arrive on Events() until the
// consumer is closed or its task hits a fatal error, at which point the
// channel is closed. Callers detect termination as channel closure.
type Consumer struct {
	sub    event.Subscription
	out    chan event.Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Events returns the bounded delivery channel.
func (c *Consumer) Events() <-chan event.Event { return c.out }

// ID returns the subscription id (generated when the caller left it unset).
func (c *Consumer) ID() string { return c.sub.ID }

// Close cancels the background task cooperatively and waits for it to exit.
func (c *Consumer) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}

// Subscribe turns a declarative subscription into a running consumer.
// Topic mode registers a broadcast channel with the topic; stream mode runs
// a pull loop against the persistence port, applying the filter and
// persisting the offset after each forwarded event.
func (e *Engine) Subscribe(ctx context.Context, sub event.Subscription) (*Consumer, error) {
	if _, ok := e.lookupStream(sub.Stream); !ok {
		return nil, fmt.Errorf("subscribe to %q: %w", sub.Stream, ErrNotFound)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.BatchSize <= 0 {
		sub.BatchSize = e.cfg.DefaultBatchSize
	}

	if err := e.store.SaveSubscription(ctx, sub); err != nil {
		e.logger.Warn("persist subscription failed", logpkg.F("subscription", sub.ID), logpkg.Err(err))
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		sub:    sub,
		out:    make(chan event.Event, e.cfg.SubscriberBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.counters.consumers.Add(1)

	if sub.Topic != "" {
		t, ok := e.lookupTopic(sub.Topic)
		if !ok {
			cancel()
			e.counters.consumers.Add(-1)
			return nil, fmt.Errorf("subscribe to topic %q: %w", sub.Topic, ErrNotFound)
		}
		subID, ch := t.register(e.cfg.SubscriberBuffer)
		go func() {
			defer close(c.done)
			defer close(c.out)
			defer t.unregister(subID)
			defer e.counters.consumers.Add(-1)
			e.forwardTopic(taskCtx, sub, ch, c.out)
		}()
		return c, nil
	}

	go func() {
		defer close(c.done)
		defer close(c.out)
		defer e.counters.consumers.Add(-1)
		e.pollStream(taskCtx, sub, c.out)
	}()
	return c, nil
}

// forwardTopic receives broadcast events, applies the filter, and pushes
// matches into the consumer's bounded channel.
func (e *Engine) forwardTopic(ctx context.Context, sub event.Subscription, in <-chan event.Event, out chan<- event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-in:
			if sub.Filter != nil && !sub.Filter.Matches(&ev) {
				continue
			}
			select {
			case out <- ev:
				e.counters.consumed.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}
}

// pollStream is the stream-mode pull loop. The starting offset is resolved
// once, then batches are loaded from the persistence port, filtered, and
// forwarded; the offset is advanced and persisted after each forwarded
// event. Consecutive empty batches past the configured threshold trigger
// sharply increasing backoff up to the cap, so an idle stream never
// busy-loops.
func (e *Engine) pollStream(ctx context.Context, sub event.Subscription, out chan<- event.Event) {
	logger := e.logger.With(logpkg.F("subscription", sub.ID), logpkg.F("stream", string(sub.Stream)))

	from, minTimestamp := e.resolveOffset(ctx, sub)
	emptyPolls := 0
	delay := e.cfg.PollInterval

	for {
		events, err := e.store.LoadEvents(ctx, sub.Stream, from, sub.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.counters.failed.Add(1)
			logger.Error("load events failed; stopping consumer", logpkg.Err(err))
			return
		}

		for i := range events {
			ev := events[i]
			from = ev.ID + 1
			if minTimestamp > 0 && ev.Timestamp < minTimestamp {
				continue
			}
			if sub.Filter != nil && !sub.Filter.Matches(&ev) {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			e.counters.consumed.Add(1)
			if err := e.store.SaveConsumerOffset(ctx, sub.ID, sub.Stream, ev.ID); err != nil {
				logger.Warn("persist offset failed", logpkg.F("id", uint64(ev.ID)), logpkg.Err(err))
			}
		}

		if len(events) == 0 {
			emptyPolls++
			if emptyPolls >= e.cfg.MaxEmptyPolls {
				delay *= 2
				if delay > e.cfg.BackoffCap {
					delay = e.cfg.BackoffCap
				}
			}
		} else {
			emptyPolls = 0
			delay = e.cfg.PollInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// resolveOffset maps the subscription's declarative offset to the first
// event id to load, plus a minimum timestamp for FromTimestamp mode.
func (e *Engine) resolveOffset(ctx context.Context, sub event.Subscription) (event.ID, uint64) {
	switch sub.Offset.Kind {
	case event.OffsetBeginning:
		return 0, 0
	case event.OffsetEnd:
		if off, ok, err := e.store.LoadConsumerOffset(ctx, sub.ID, sub.Stream); err == nil && ok {
			return off + 1, 0
		}
		// nothing persisted: start at the current tail
		if s, ok := e.lookupStream(sub.Stream); ok {
			return event.ID(s.lastSeq()) + 1, 0
		}
		return 0, 0
	case event.OffsetFromID:
		return sub.Offset.ID, 0
	case event.OffsetFromTimestamp:
		return 0, sub.Offset.Timestamp
	case event.OffsetFromSequence:
		return event.ID(sub.Offset.Sequence), 0
	default:
		return 0, 0
	}
}
