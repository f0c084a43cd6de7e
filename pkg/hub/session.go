package hub

import (
	"fmt"

	"parceltrack/pkg/protocol"
)

// HandleInbound processes one raw client message. Malformed payloads
// and unknown commands are answered with an error envelope; neither
// closes the connection. Only a transport-level failure ends a session.
func (h *Hub) HandleInbound(conn *Conn, data []byte) error {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		h.log.Warn("malformed message", "conn", conn.String())
		return h.do(func() {
			h.registry.send(conn.identity.UserID, protocol.ErrorEnvelope("Invalid message format"))
		})
	}
	return h.do(func() {
		h.handleCommand(conn, cmd)
	})
}

// handleCommand runs on the serving goroutine
func (h *Hub) handleCommand(conn *Conn, cmd *protocol.Command) {
	userID := conn.identity.UserID

	switch cmd.Type {
	case protocol.CmdPing:
		h.registry.send(userID, protocol.Pong())

	case protocol.CmdSubscribePackage, protocol.CmdSubscribeDelivery:
		ref, ok := cmd.EntityRef()
		if !ok {
			h.registry.send(userID, protocol.ErrorEnvelope("Missing entity id"))
			return
		}
		h.subs.subscribe(userID, ref)
		h.registry.send(userID, protocol.SubscriptionAck(ref, true))

	case protocol.CmdUnsubscribePackage, protocol.CmdUnsubscribeDelivery:
		ref, ok := cmd.EntityRef()
		if !ok {
			h.registry.send(userID, protocol.ErrorEnvelope("Missing entity id"))
			return
		}
		h.subs.unsubscribe(userID, ref)
		h.registry.send(userID, protocol.SubscriptionAck(ref, false))

	case protocol.CmdGetStats:
		if conn.identity.Role != protocol.RoleAdmin {
			h.registry.send(userID, protocol.ErrorEnvelope("Insufficient permissions"))
			return
		}
		h.registry.send(userID, protocol.Stats(h.statsLocked()))

	default:
		h.log.Warn("unknown command", "conn", conn.String(), "command", cmd.Type)
		h.registry.send(userID, protocol.ErrorEnvelope(fmt.Sprintf("Unknown message type: %s", cmd.Type)))
	}
}
