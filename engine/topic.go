package engine

import (
	"sync"
	"time"

	"github.com/keelmq/keel/event"
)

// TopicSpec declares a topic at creation time. The referenced stream must
// exist. Configuration is immutable after creation; only the subscriber set
// changes.
type TopicSpec struct {
	Name       event.TopicName
	Stream     event.StreamName
	Partitions int
	Retention  time.Duration
	Fanout     bool
}

// topic maintains the set of live subscriber channels for one name and
// broadcasts each published event to all of them.
type topic struct {
	spec TopicSpec

	mu      sync.Mutex
	nextSub uint64
	subs    map[uint64]chan event.Event
}

// CreateTopic registers a new topic bound to an existing stream.
func (e *Engine) CreateTopic(spec TopicSpec) error {
	if _, ok := e.lookupStream(spec.Stream); !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.topics[spec.Name]; ok {
		return ErrAlreadyExists
	}
	e.topics[spec.Name] = &topic{spec: spec, subs: map[uint64]chan event.Event{}}
	return nil
}

// register adds a subscriber channel and returns its id for removal.
func (t *topic) register(buf int) (uint64, chan event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSub++
	ch := make(chan event.Event, buf)
	t.subs[t.nextSub] = ch
	return t.nextSub, ch
}

// unregister removes a subscriber channel. The channel is not closed here;
// the forwarding goroutine owns draining it.
func (t *topic) unregister(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, id)
}

// broadcast delivers the event to every live subscriber channel. A full
// channel silently misses the event: fan-out is best-effort and slow
// consumers never block producers or other consumers.
func (t *topic) broadcast(ev event.Event, c *counters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev.Clone():
			c.delivered.Add(1)
		default:
			c.lost.Add(1)
		}
	}
}
