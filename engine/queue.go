package engine

import (
	"sync"
	"time"

	"github.com/keelmq/keel/event"
)

// QueueSpec declares a queue at creation time. The referenced stream, and
// topic when set, must exist.
type QueueSpec struct {
	Name   event.QueueName
	Stream event.StreamName
	Topic  event.TopicName
	FIFO   bool
	// Deduplication skips an enqueue whose event id is already buffered.
	Deduplication bool
	// VisibilityTimeout is the default lease duration. Zero selects the
	// engine-wide default.
	VisibilityTimeout time.Duration
	// MaxReceives dead-letters a message after this many expired leases
	// when > 0.
	MaxReceives int
	// DeadLetterQueue receives evicted and max-receives messages when set.
	DeadLetterQueue event.QueueName
	Retention       time.Duration
	// MaxSizeBytes caps the estimated buffer size when > 0.
	MaxSizeBytes int64
	// MaxMessages caps the buffered message count when > 0.
	MaxMessages int
}

// leaseEntry tracks one in-flight message.
type leaseEntry struct {
	until    time.Time
	receives int
}

// queue is the competing-consumers FIFO structure. Messages remain in the
// ordered buffer while leased; the in-flight map marks them invisible to
// receive scans, so an expired lease returns a message to visibility at its
// original position rather than the tail.
//
// State machine per message:
//
//	Pending -> InFlight -> Acked (removed)
//	                    -> VisibilityExpired -> Pending (original position)
//	                    -> MaxReceivesExceeded -> DeadLettered
type queue struct {
	spec       QueueSpec
	visibility time.Duration

	mu      sync.Mutex
	pending []event.Event
	sizes   []int
	bytes   int64
	// inflight marks leased ids; receiveCounts survives lease expiry so
	// MaxReceives accumulates across deliveries.
	inflight      map[event.ID]*leaseEntry
	receiveCounts map[event.ID]int
}

// CreateQueue registers a new queue bound to an existing stream and,
// optionally, topic.
func (e *Engine) CreateQueue(spec QueueSpec) error {
	if _, ok := e.lookupStream(spec.Stream); !ok {
		return ErrNotFound
	}
	if spec.Topic != "" {
		if _, ok := e.lookupTopic(spec.Topic); !ok {
			return ErrNotFound
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.queues[spec.Name]; ok {
		return ErrAlreadyExists
	}
	vis := spec.VisibilityTimeout
	if vis <= 0 {
		vis = e.cfg.DefaultVisibilityTimeout
	}
	e.queues[spec.Name] = &queue{spec: spec, visibility: vis, inflight: map[event.ID]*leaseEntry{}, receiveCounts: map[event.ID]int{}}
	return nil
}

// enqueue buffers one message, applying dedup and the size/count caps.
// size is the serialized event size from publish validation. Evicted
// messages go to the engine's dead-letter buffer when the queue has one
// configured, else they are dropped.
func (q *queue) enqueue(ev event.Event, size int, e *Engine) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.spec.Deduplication {
		for i := range q.pending {
			if q.pending[i].ID == ev.ID {
				e.counters.duplicated.Add(1)
				return
			}
		}
	}

	// max message count: shed the oldest before appending
	if q.spec.MaxMessages > 0 {
		for len(q.pending) >= q.spec.MaxMessages {
			q.shedOldestLocked(e)
		}
	}
	// max size: evict oldest until <= 90% of the cap
	if q.spec.MaxSizeBytes > 0 && q.bytes+int64(size) > q.spec.MaxSizeBytes {
		target := q.spec.MaxSizeBytes * 9 / 10
		for len(q.pending) > 0 && q.bytes+int64(size) > target {
			q.shedOldestLocked(e)
		}
	}

	q.pending = append(q.pending, ev.Clone())
	q.sizes = append(q.sizes, size)
	q.bytes += int64(size)
}

// shedOldestLocked removes the head message, dead-lettering it when the
// queue routes evictions. Any lease on the head is discarded with it.
func (q *queue) shedOldestLocked(e *Engine) {
	if len(q.pending) == 0 {
		return
	}
	old := q.pending[0]
	delete(q.inflight, old.ID)
	delete(q.receiveCounts, old.ID)
	q.bytes -= int64(q.sizes[0])
	q.pending = append([]event.Event(nil), q.pending[1:]...)
	q.sizes = append([]int(nil), q.sizes[1:]...)
	if q.spec.DeadLetterQueue != "" {
		e.deadLetter(q.spec.DeadLetterQueue, old)
	} else {
		e.counters.lost.Add(1)
	}
}

// receive leases up to max visible messages. It first reaps expired leases:
// a message whose receive count reached MaxReceives is dead-lettered, others
// simply become visible again. TTL-expired messages are purged to the
// dead-letter buffer so they stop counting against the size and message
// caps. Then pending is scanned front-to-back,
// skipping entries still in flight. At-least-once: an un-acked lease expires
// and the message is delivered again.
func (q *queue) receive(max int, visibility time.Duration, now time.Time, e *Engine) []event.Event {
	if max <= 0 {
		max = 1
	}
	if visibility <= 0 {
		visibility = q.visibility
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	// reap expired leases
	for id, lease := range q.inflight {
		if now.Before(lease.until) {
			continue
		}
		delete(q.inflight, id)
		if q.spec.MaxReceives > 0 && lease.receives >= q.spec.MaxReceives {
			q.removePendingLocked(id, e, true)
		}
	}

	// purge TTL-expired messages so they stop occupying the buffer caps
	for i := 0; i < len(q.pending); {
		ev := q.pending[i]
		if _, leased := q.inflight[ev.ID]; !leased && ev.Expired(now) {
			q.removePendingLocked(ev.ID, e, true)
			continue
		}
		i++
	}

	var out []event.Event
	for i := 0; i < len(q.pending) && len(out) < max; i++ {
		ev := q.pending[i]
		if _, leased := q.inflight[ev.ID]; leased {
			continue
		}
		lease := &leaseEntry{until: now.Add(visibility), receives: q.receiveCounts[ev.ID] + 1}
		q.receiveCounts[ev.ID] = lease.receives
		q.inflight[ev.ID] = lease
		out = append(out, ev.Clone())
	}
	return out
}

// acknowledge removes the id from the in-flight map and the pending buffer.
// This is the only operation that permanently removes a message.
func (q *queue) acknowledge(id event.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, leased := q.inflight[id]
	delete(q.inflight, id)
	removed := q.removePendingLocked(id, nil, false)
	return leased || removed
}

// removePendingLocked deletes the id from the pending buffer. When
// deadLetterIt is set, the message is routed to the queue's DLQ (or counted
// lost without one).
func (q *queue) removePendingLocked(id event.ID, e *Engine, deadLetterIt bool) bool {
	for i := range q.pending {
		if q.pending[i].ID != id {
			continue
		}
		ev := q.pending[i]
		q.bytes -= int64(q.sizes[i])
		q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
		q.sizes = append(q.sizes[:i:i], q.sizes[i+1:]...)
		delete(q.receiveCounts, id)
		if deadLetterIt && e != nil {
			if q.spec.DeadLetterQueue != "" {
				e.deadLetter(q.spec.DeadLetterQueue, ev)
			} else {
				e.counters.lost.Add(1)
			}
		}
		return true
	}
	return false
}

// ReceiveFromQueue leases up to max messages from the named queue. A zero
// visibility selects the queue's configured timeout.
func (e *Engine) ReceiveFromQueue(name event.QueueName, max int, visibility time.Duration) ([]event.Event, error) {
	q, ok := e.lookupQueue(name)
	if !ok {
		return nil, ErrNotFound
	}
	out := q.receive(max, visibility, time.Now(), e)
	if n := len(out); n > 0 {
		e.counters.consumed.Add(uint64(n))
	}
	return out, nil
}

// Acknowledge permanently removes a leased message.
func (e *Engine) Acknowledge(name event.QueueName, id event.ID) error {
	q, ok := e.lookupQueue(name)
	if !ok {
		return ErrNotFound
	}
	q.acknowledge(id)
	return nil
}
