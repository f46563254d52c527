package event

import (
	"time"
)

// ID identifies an event within its stream. IDs are assigned by the stream
// registry at publish time (monotonically increasing per stream, starting at
// 1). Zero means unset.
type ID uint64

// StreamName names an ordered, append-only event log.
type StreamName string

// TopicName names a pub/sub fan-out overlay bound to a stream.
type TopicName string

// QueueName names a competing-consumers FIFO queue bound to a stream.
type QueueName string

// Event is the immutable unit of publication. Once published it is never
// mutated in place; copies cross structure boundaries (stream log, topic
// subscriber channels, queue buffers, DLQ).
type Event struct {
	ID            ID                `json:"id"`
	Stream        StreamName        `json:"stream"`
	Topic         TopicName         `json:"topic,omitempty"`
	Queue         QueueName         `json:"queue,omitempty"`
	Type          string            `json:"type"`
	Payload       map[string]any    `json:"payload,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Timestamp     uint64            `json:"timestamp"` // epoch seconds
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   ID                `json:"causation_id,omitempty"`
	PartitionKey  string            `json:"partition_key,omitempty"`
	TTL           uint64            `json:"ttl,omitempty"` // seconds, 0 = no expiry
	Priority      uint8             `json:"priority"`
}

// Clone returns a deep copy. Maps are copied so that holders on either side
// of a structure boundary never share mutable state.
func (e Event) Clone() Event {
	out := e
	if e.Payload != nil {
		out.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			out.Payload[k] = v
		}
	}
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// Expired reports whether the event's TTL has elapsed relative to now.
func (e Event) Expired(now time.Time) bool {
	if e.TTL == 0 || e.Timestamp == 0 {
		return false
	}
	return uint64(now.Unix()) >= e.Timestamp+e.TTL
}
