package engine

import "sync/atomic"

// counters are updated by every component; reads are point-in-time snapshots
// with no behavioral coupling.
type counters struct {
	published  atomic.Uint64
	consumed   atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64
	duplicated atomic.Uint64
	lost       atomic.Uint64

	consumers atomic.Int64
	producers atomic.Int64
}

// Metrics is a snapshot of engine counters.
type Metrics struct {
	Published  uint64 `json:"published"`
	Consumed   uint64 `json:"consumed"`
	Delivered  uint64 `json:"delivered"`
	Failed     uint64 `json:"failed"`
	Duplicated uint64 `json:"duplicated"`
	Lost       uint64 `json:"lost"`

	Streams   int `json:"streams"`
	Topics    int `json:"topics"`
	Queues    int `json:"queues"`
	Consumers int `json:"consumers"`
	Producers int `json:"producers"`
}

// Metrics returns a point-in-time snapshot of engine counters.
func (e *Engine) Metrics() Metrics {
	e.mu.RLock()
	streams, topics, queues := len(e.streams), len(e.topics), len(e.queues)
	e.mu.RUnlock()
	return Metrics{
		Published:  e.counters.published.Load(),
		Consumed:   e.counters.consumed.Load(),
		Delivered:  e.counters.delivered.Load(),
		Failed:     e.counters.failed.Load(),
		Duplicated: e.counters.duplicated.Load(),
		Lost:       e.counters.lost.Load(),
		Streams:    streams,
		Topics:     topics,
		Queues:     queues,
		Consumers:  int(e.counters.consumers.Load()),
		Producers:  int(e.counters.producers.Load()),
	}
}
