package engine

import (
	"context"
	"sync"

	"github.com/keelmq/keel/event"
	logpkg "github.com/keelmq/keel/pkg/log"
)

// Producer is a bound, reusable publish handle for one (stream, topic,
// queue) routing. A background goroutine owns the receive side of the
// internal channel and forwards each event into the publish pipeline with
// the bound routing overwritten, so call sites never touch the registries'
// locks directly.
type Producer struct {
	stream event.StreamName
	topic  event.TopicName
	queue  event.QueueName

	mu     sync.RWMutex
	ch     chan event.Event
	closed bool
	done   chan struct{}
}

// CreateProducer binds a publish handle to the given routing. The stream is
// not validated here; a publish to a missing stream is logged by the
// forwarding goroutine like any other pipeline failure.
func (e *Engine) CreateProducer(stream event.StreamName, topic event.TopicName, queue event.QueueName) *Producer {
	p := &Producer{
		stream: stream,
		topic:  topic,
		queue:  queue,
		ch:     make(chan event.Event, e.cfg.SubscriberBuffer),
		done:   make(chan struct{}),
	}
	e.counters.producers.Add(1)
	go func() {
		defer close(p.done)
		defer e.counters.producers.Add(-1)
		logger := e.logger.With(logpkg.F("stream", string(stream)))
		for ev := range p.ch {
			ev.Stream = p.stream
			ev.Topic = p.topic
			ev.Queue = p.queue
			if _, err := e.Publish(context.Background(), ev); err != nil {
				e.counters.failed.Add(1)
				logger.Warn("producer publish failed", logpkg.F("type", ev.Type), logpkg.Err(err))
			}
		}
	}()
	return p
}

// Publish hands the event to the forwarding goroutine. Routing fields are
// overwritten with the producer's binding. Returns ErrClosed after Close.
// Publishers share a read lock, so a sender blocked on a full buffer does
// not serialize the others; Close takes the write lock and therefore waits
// for in-progress sends before closing the channel.
func (p *Producer) Publish(ev event.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.ch <- ev
	return nil
}

// Close stops accepting events, flushes the buffered ones, and waits for
// the forwarding goroutine to exit.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	<-p.done
}
