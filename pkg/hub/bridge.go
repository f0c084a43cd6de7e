package hub

import (
	"sync"

	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
)

// Bridge is the only sanctioned crossing point between request-handling
// goroutines and the serving goroutine that owns the live connections.
// Notify may be called from any goroutine; the event is marshaled onto
// the serving loop's work queue and executed there. The caller never
// blocks waiting for delivery.
//
// The queue handle is set by the serving loop when the first connection
// registers and cleared when the last one drops. With no active handle,
// Notify is a documented no-op: the event is dropped, not queued for
// later. This is a best-effort channel, not a durable one.
type Bridge struct {
	mu       sync.Mutex
	queue    chan<- func()
	dispatch func(BroadcastTarget, *protocol.Envelope)
	log      *logger.Logger
}

func newBridge(dispatch func(BroadcastTarget, *protocol.Envelope)) *Bridge {
	return &Bridge{
		dispatch: dispatch,
		log:      logger.Component("bridge"),
	}
}

// bind publishes the serving loop's work queue. Called only from the
// serving goroutine.
func (b *Bridge) bind(queue chan<- func()) {
	b.mu.Lock()
	b.queue = queue
	b.mu.Unlock()
}

// clear withdraws the handle. Called only from the serving goroutine.
func (b *Bridge) clear() {
	b.mu.Lock()
	b.queue = nil
	b.mu.Unlock()
}

// Notify hands an event to the dispatcher on the serving goroutine.
// If no serving loop is active, or the handoff cannot complete, the
// event is silently dropped.
func (b *Bridge) Notify(target BroadcastTarget, env *protocol.Envelope) {
	b.mu.Lock()
	queue := b.queue
	b.mu.Unlock()

	if queue == nil {
		b.log.Debug("no active connections, dropping event", "target", target.String(), "envelope", env.Type)
		return
	}

	select {
	case queue <- func() { b.dispatch(target, env) }:
	default:
		// The queue is full or tearing down. Fail fast, drop silently.
		b.log.Debug("handoff failed, dropping event", "target", target.String(), "envelope", env.Type)
	}
}
