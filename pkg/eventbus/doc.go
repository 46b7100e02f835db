// Package eventbus implements the real-time event core of the netgate
// device management server: it turns raw transport occurrences (connect,
// disconnect, message, ping, HTTP upgrade) into a canonical event model,
// stores them in a bounded queue and dispatches them to dynamically
// registered subscribers under filters and priorities.
//
// # Architecture
//
//   - ConnectionRegistry: authoritative map from transport handle to a
//     monotonically increasing connection id plus mutable per-connection
//     state, guarded by one RWMutex.
//   - EventQueue: bounded FIFO (default 10,000) with drop-oldest overflow
//     and pause/resume control. Publish never blocks the transport thread.
//   - CallbackRegistry: subscriptions with type/connection/priority/age
//     filters, activation flags and execution counters.
//   - Dispatcher: a fixed pool of workers (default 4) draining the queue.
//     Per event, matching registrations are copied under a read lock and
//     invoked sequentially in priority-then-registration order; panics are
//     caught at the dispatch boundary and never kill a worker.
//
// The four components hold independent locks and none of them is held
// while a user handler runs, so handlers may register, unregister or
// query freely without deadlocking.
//
// # Basic Usage
//
//	bus, err := eventbus.New(transport,
//	    eventbus.WithWorkerCount(4),
//	    eventbus.WithConnectionLimit(1000),
//	    eventbus.WithRateLimit(50, 10),
//	    eventbus.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bus.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Subscribe to text messages
//	id := bus.OnMessageReceived(func(ev *eventbus.Event, msg eventbus.MessageContext) {
//	    fmt.Printf("conn %d sent %q\n", msg.Conn.ID, msg.Data)
//	})
//	defer bus.UnregisterCallback(id)
//
//	// Push to every connected UI client
//	bus.Broadcast(`{"status":"ok"}`, nil)
//
//	// Graceful shutdown: queued events are discarded, not flushed
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	bus.Shutdown(ctx)
//
// # Delivery semantics
//
// Events are consumed exactly once by one worker and then discarded;
// there is no persistence, replay or cross-event ordering guarantee.
// The only backpressure mechanism is the queue's drop-oldest eviction.
package eventbus
