package engine

import (
	"sync"
	"time"

	"github.com/keelmq/keel/event"
)

// StreamSpec declares a stream at creation time. Configuration is immutable
// after creation; only the log and sequence counter mutate.
type StreamSpec struct {
	Name event.StreamName
	// Partitions is reserved; only 1 is supported.
	Partitions int
	// Retention drops events older than this age when > 0.
	Retention time.Duration
	// ReplicationFactor is declarative only in a single-node engine.
	ReplicationFactor int
	Compression       bool
	Encryption        bool
	// MaxSizeBytes caps the estimated log size when > 0.
	MaxSizeBytes int64
	// MaxEvents caps the retained event count when > 0.
	MaxEvents int
}

// stream owns a per-name append-only log, its sequence counter, and
// retention enforcement. Reads of the log may be concurrent with each other
// but are exclusive with appends and evictions.
type stream struct {
	spec StreamSpec

	mu    sync.RWMutex
	log   []event.Event
	sizes []int // encoded size per log entry, parallel to log
	bytes int64 // running total of sizes
	seq   uint64
}

// StreamStats summarizes one stream.
type StreamStats struct {
	Name     event.StreamName `json:"name"`
	Events   int              `json:"events"`
	OldestID event.ID         `json:"oldest_id"`
	NewestID event.ID         `json:"newest_id"`
	LastSeq  uint64           `json:"last_seq"`
	// SizeBytes is the serialized-size estimate used for retention.
	SizeBytes int64 `json:"size_bytes"`
}

// CreateStream registers a new stream. Duplicate names are an error, not an
// overwrite.
func (e *Engine) CreateStream(spec StreamSpec) error {
	if spec.Name == "" {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.streams[spec.Name]; ok {
		return ErrAlreadyExists
	}
	e.streams[spec.Name] = &stream{spec: spec}
	return nil
}

// StreamStats returns counters for one stream.
func (e *Engine) StreamStats(name event.StreamName) (StreamStats, error) {
	s, ok := e.lookupStream(name)
	if !ok {
		return StreamStats{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := StreamStats{Name: name, Events: len(s.log), LastSeq: s.seq, SizeBytes: s.bytes}
	if len(s.log) > 0 {
		st.OldestID = s.log[0].ID
		st.NewestID = s.log[len(s.log)-1].ID
	}
	return st, nil
}

// Events returns a copy of the stream's retained log. Mostly useful for
// stats and tests; consumers should subscribe instead.
func (e *Engine) Events(name event.StreamName) ([]event.Event, error) {
	s, ok := e.lookupStream(name)
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]event.Event, len(s.log))
	for i := range s.log {
		out[i] = s.log[i].Clone()
	}
	return out, nil
}

// append assigns id/timestamp when absent, appends, and enforces retention.
// size is the serialized event size computed during validation. Log ids are
// unique and strictly increasing: an incoming id at or below the current
// sequence is a re-publication of an already-sequenced event, reported as
// false so the caller routes it without appending or persisting it again.
func (s *stream) append(ev *event.Event, size int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp == 0 {
		ev.Timestamp = uint64(now.Unix())
	}
	switch {
	case ev.ID == 0:
		s.seq++
		ev.ID = event.ID(s.seq)
	case uint64(ev.ID) > s.seq:
		s.seq = uint64(ev.ID)
	default:
		return false
	}

	s.log = append(s.log, ev.Clone())
	s.sizes = append(s.sizes, size)
	s.bytes += int64(size)

	// max age
	if s.spec.Retention > 0 {
		cutoff := uint64(now.Add(-s.spec.Retention).Unix())
		drop := 0
		for drop < len(s.log) && s.log[drop].Timestamp < cutoff {
			drop++
		}
		s.dropFront(drop)
	}
	// max event count: drop oldest to fit
	if s.spec.MaxEvents > 0 && len(s.log) > s.spec.MaxEvents {
		s.dropFront(len(s.log) - s.spec.MaxEvents)
	}
	// max size: evict from the front until <= 90% of the cap
	if s.spec.MaxSizeBytes > 0 && s.bytes > s.spec.MaxSizeBytes {
		target := s.spec.MaxSizeBytes * 9 / 10
		drop := 0
		bytes := s.bytes
		for drop < len(s.log) && bytes > target {
			bytes -= int64(s.sizes[drop])
			drop++
		}
		s.dropFront(drop)
	}
	return true
}

func (s *stream) dropFront(n int) {
	if n <= 0 {
		return
	}
	if n > len(s.log) {
		n = len(s.log)
	}
	for i := 0; i < n; i++ {
		s.bytes -= int64(s.sizes[i])
	}
	s.log = append([]event.Event(nil), s.log[n:]...)
	s.sizes = append([]int(nil), s.sizes[n:]...)
}

// lastSeq reads the sequence counter for tail-offset resolution.
func (s *stream) lastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}
