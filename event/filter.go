package event

import (
	"fmt"
	"strings"
)

// Filter is a pure predicate over a single event. Implementations must be
// stateless and side-effect free; Matches may be called from any goroutine.
type Filter interface {
	Matches(ev *Event) bool
}

// Wildcard matches every value in pattern leaves.
const Wildcard = "*"

// matchPattern is the matcher used by all *Pattern leaves: the wildcard "*"
// matches everything, otherwise plain substring containment. This is an
// intentionally simple matcher, not a regex engine.
func matchPattern(pattern, value string) bool {
	if pattern == Wildcard {
		return true
	}
	return strings.Contains(value, pattern)
}

// EventType matches by exact event type equality.
type EventType string

func (f EventType) Matches(ev *Event) bool { return ev.Type == string(f) }

// EventTypePattern matches when the pattern is contained in the event type.
type EventTypePattern string

func (f EventTypePattern) Matches(ev *Event) bool { return matchPattern(string(f), ev.Type) }

// Header matches by exact header key/value equality.
type Header struct {
	Key   string
	Value string
}

func (f Header) Matches(ev *Event) bool {
	v, ok := ev.Headers[f.Key]
	return ok && v == f.Value
}

// HeaderPattern matches when the pattern is contained in the named header.
type HeaderPattern struct {
	Key     string
	Pattern string
}

func (f HeaderPattern) Matches(ev *Event) bool {
	v, ok := ev.Headers[f.Key]
	return ok && matchPattern(f.Pattern, v)
}

// PayloadField matches a single top-level payload field by exact value.
// Deeper paths are out of scope; Path is a field name, not a JSONPath.
type PayloadField struct {
	Path  string
	Value any
}

func (f PayloadField) Matches(ev *Event) bool {
	v, ok := ev.Payload[f.Path]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

// PayloadPattern matches when the pattern is contained in the string form of
// a single top-level payload field.
type PayloadPattern struct {
	Path    string
	Pattern string
}

func (f PayloadPattern) Matches(ev *Event) bool {
	v, ok := ev.Payload[f.Path]
	if !ok {
		return false
	}
	return matchPattern(f.Pattern, fmt.Sprint(v))
}

// And matches when every child matches. An empty And matches everything.
type And []Filter

func (f And) Matches(ev *Event) bool {
	for _, c := range f {
		if !c.Matches(ev) {
			return false
		}
	}
	return true
}

// Or matches when at least one child matches. An empty Or matches nothing.
type Or []Filter

func (f Or) Matches(ev *Event) bool {
	for _, c := range f {
		if c.Matches(ev) {
			return true
		}
	}
	return false
}

// Not matches the complement of its child.
type Not struct {
	Filter Filter
}

func (f Not) Matches(ev *Event) bool { return !f.Filter.Matches(ev) }
