// Package engine implements the embedded event-streaming and messaging
// engine: ordered streams (durable append logs), topics (pub/sub fan-out
// over a stream), and queues (competing-consumers FIFO with visibility
// timeouts, deduplication, and dead-lettering).
//
// Example:
//
//	eng := engine.New(engine.Options{Store: memstore.New(memstore.Options{})})
//	_ = eng.CreateStream(engine.StreamSpec{Name: "orders", MaxEvents: 10000})
//	id, _ := eng.Publish(ctx, event.Event{Stream: "orders", Type: "order.created"})
//	c, _ := eng.Subscribe(ctx, event.Subscription{Stream: "orders"})
//	for ev := range c.Events() {
//		_ = ev
//	}
package engine
