// Package log provides the structured, leveled logger used across the
// engine. Components obtain a tagged logger at construction time and pass it
// explicitly; there is no global default.
package log
