package engine

import (
	"sync"

	cfgpkg "github.com/keelmq/keel/config"
	"github.com/keelmq/keel/event"
	logpkg "github.com/keelmq/keel/pkg/log"
	"github.com/keelmq/keel/storage"
)

// Options for building an Engine.
type Options struct {
	// Config supplies engine limits. Zero value selects config.Default().
	Config cfgpkg.Config
	// Store is the persistence backend. Required.
	Store storage.Backend
	// Logger receives pipeline diagnostics. Nil selects a default logger.
	Logger logpkg.Logger
}

// Engine owns the stream, topic, and queue registries and the publish
// pipeline. Registries are guarded by a registry-level RWMutex for name
// lookups; each stream, topic, and queue carries its own lock so operations
// on different names proceed without contention.
type Engine struct {
	cfg    cfgpkg.Config
	store  storage.Backend
	logger logpkg.Logger

	mu      sync.RWMutex
	streams map[event.StreamName]*stream
	topics  map[event.TopicName]*topic
	queues  map[event.QueueName]*queue

	dlqMu sync.Mutex
	dlq   map[event.QueueName][]event.Event

	counters counters
}

// New builds an Engine around the provided storage backend.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == (cfgpkg.Config{}) {
		cfg = cfgpkg.Default()
	}
	// scheduling knobs must be positive even in a partially filled config;
	// a zero poll interval would busy-loop idle stream consumers.
	def := cfgpkg.Default()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxEmptyPolls <= 0 {
		cfg.MaxEmptyPolls = def.MaxEmptyPolls
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("engine"))
	}
	return &Engine{
		cfg:     cfg,
		store:   opts.Store,
		logger:  logger,
		streams: map[event.StreamName]*stream{},
		topics:  map[event.TopicName]*topic{},
		queues:  map[event.QueueName]*queue{},
		dlq:     map[event.QueueName][]event.Event{},
	}
}

// Close releases the storage backend. Consumers and producers should be
// closed by their owners first.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) lookupStream(name event.StreamName) (*stream, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.streams[name]
	return s, ok
}

func (e *Engine) lookupTopic(name event.TopicName) (*topic, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.topics[name]
	return t, ok
}

func (e *Engine) lookupQueue(name event.QueueName) (*queue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.queues[name]
	return q, ok
}

// deadLetter appends the event to the named queue's dead-letter buffer,
// evicting the oldest entry at the cap.
func (e *Engine) deadLetter(dlqName event.QueueName, ev event.Event) {
	e.dlqMu.Lock()
	defer e.dlqMu.Unlock()
	buf := append(e.dlq[dlqName], ev)
	if cap := e.cfg.DeadLetterCap; cap > 0 && len(buf) > cap {
		buf = buf[len(buf)-cap:]
	}
	e.dlq[dlqName] = buf
}

// DeadLetters returns a copy of the dead-letter buffer for the given queue
// name. Routing targets are named by the owning queue's DeadLetterQueue.
func (e *Engine) DeadLetters(name event.QueueName) []event.Event {
	e.dlqMu.Lock()
	defer e.dlqMu.Unlock()
	out := make([]event.Event, len(e.dlq[name]))
	copy(out, e.dlq[name])
	return out
}
