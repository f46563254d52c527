package event

import (
	"errors"
	"time"
)

// ErrEmptyExpression is returned by NewExpression for blank input.
var ErrEmptyExpression = errors.New("event: empty filter expression")

// OffsetKind selects how a stream-mode consumer resolves its starting
// position.
type OffsetKind int

const (
	// OffsetBeginning starts from the first retained event.
	OffsetBeginning OffsetKind = iota
	// OffsetEnd resumes from the last persisted offset for the subscription,
	// or the current tail when none was persisted.
	OffsetEnd
	// OffsetFromID starts at the given event id.
	OffsetFromID
	// OffsetFromTimestamp starts at the first event with timestamp >= Timestamp.
	OffsetFromTimestamp
	// OffsetFromSequence starts at the given sequence number.
	OffsetFromSequence
)

// Offset is a position from which a stream-mode consumer resumes reading.
type Offset struct {
	Kind      OffsetKind `json:"kind"`
	ID        ID         `json:"id,omitempty"`
	Timestamp uint64     `json:"timestamp,omitempty"` // epoch seconds
	Sequence  uint64     `json:"sequence,omitempty"`
}

// Subscription declares what a consumer wants to receive. The Filter is not
// persisted (predicate trees and compiled programs are not serializable); a
// resumed consumer supplies its filter again.
type Subscription struct {
	ID         string        `json:"id"`
	Stream     StreamName    `json:"stream"`
	Topic      TopicName     `json:"topic,omitempty"`
	Filter     Filter        `json:"-"`
	Group      string        `json:"group,omitempty"`
	Offset     Offset        `json:"offset"`
	BatchSize  int           `json:"batch_size,omitempty"`
	AutoAck    bool          `json:"auto_ack,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty"`
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}
