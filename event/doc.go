// Package event defines the engine's data model: events and their
// identifiers, the subscription and offset types, and the boolean filter
// predicate tree evaluated against single events.
package event
