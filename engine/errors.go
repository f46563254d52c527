package engine

import "errors"

// Validation errors surface to the caller synchronously with zero side
// effects. Persistence and delivery failures inside the publish pipeline are
// logged and never unwind the call.
var (
	// ErrAlreadyExists reports a duplicate stream/topic/queue name.
	ErrAlreadyExists = errors.New("engine: already exists")
	// ErrNotFound reports a missing stream/topic/queue/subscription.
	ErrNotFound = errors.New("engine: not found")
	// ErrTooLarge reports an event or payload exceeding the configured size.
	ErrTooLarge = errors.New("engine: message too large")
	// ErrSerialization reports an event that cannot be encoded.
	ErrSerialization = errors.New("engine: serialization failure")
	// ErrClosed reports an operation on a closed producer or engine.
	ErrClosed = errors.New("engine: closed")
)
