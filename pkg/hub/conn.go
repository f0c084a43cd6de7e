package hub

import (
	"parceltrack/pkg/protocol"
)

// Transport is the write side of a live client connection. The hub
// never reads from it; read pumps belong to the server layer.
type Transport interface {
	// WriteEnvelope delivers one outbound envelope to the client
	WriteEnvelope(env *protocol.Envelope) error
	// Close tears down the underlying connection
	Close() error
}

// Conn binds an authenticated identity to a live transport. Exactly one
// Conn per identity is registered at any instant; a reconnect replaces
// and closes the previous one.
type Conn struct {
	identity  protocol.Identity
	transport Transport

	// send is drained by the writer goroutine; closed only by the
	// registry, from the serving goroutine.
	send   chan *protocol.Envelope
	closed bool
}

// Identity returns the authenticated principal bound to this connection
func (c *Conn) Identity() protocol.Identity {
	return c.identity
}

func (c *Conn) String() string {
	return c.identity.String()
}

// writeLoop drains the send buffer onto the transport. A write failure
// is an implicit disconnect: the failing connection is handed back to
// the serving loop for removal and the remaining buffered envelopes are
// discarded.
func (c *Conn) writeLoop(h *Hub) {
	for env := range c.send {
		if err := c.transport.WriteEnvelope(env); err != nil {
			h.log.Debug("write failed, dropping connection", "conn", c.String(), "error", err)
			h.enqueue(func() {
				h.registry.dropConn(c)
			})
			// Drain until the registry closes the channel so the
			// serving loop can never block on this connection.
			for range c.send {
			}
			return
		}
	}
}
