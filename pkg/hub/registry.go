package hub

import (
	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
)

// DeliveryResult reports the outcome of a single send attempt
type DeliveryResult int

const (
	// Delivered means the envelope was accepted for delivery
	Delivered DeliveryResult = iota
	// NotConnected means the target identity has no live connection
	NotConnected
	// Failed means the connection was dead or backed up; it has been
	// disconnected as a side effect
	Failed
)

// RegistryStats is a read-only snapshot of the live connection set
type RegistryStats struct {
	TotalConnections  int                   `json:"total_connections"`
	ConnectionsByRole map[protocol.Role]int `json:"connections_by_role"`
}

// connectionRegistry is the single source of truth for which identities
// are reachable. All methods must be called from the serving goroutine.
type connectionRegistry struct {
	conns    map[int64]*Conn
	roles    map[protocol.Role]map[int64]struct{}
	subs     *subscriptionIndex
	sendBuf  int
	onChange func()
	log      *logger.Logger
}

func newConnectionRegistry(subs *subscriptionIndex, sendBuf int) *connectionRegistry {
	roles := make(map[protocol.Role]map[int64]struct{}, len(protocol.Roles))
	for _, r := range protocol.Roles {
		roles[r] = make(map[int64]struct{})
	}
	return &connectionRegistry{
		conns:   make(map[int64]*Conn),
		roles:   roles,
		subs:    subs,
		sendBuf: sendBuf,
		log:     logger.Component("registry"),
	}
}

// connect registers a live connection for the identity. If a previous
// connection exists for the same identity, it is closed and replaced;
// the newcomer wins.
func (r *connectionRegistry) connect(h *Hub, identity protocol.Identity, transport Transport) *Conn {
	if old, ok := r.conns[identity.UserID]; ok {
		r.log.Info("superseding existing connection", "user_id", identity.UserID)
		r.teardown(old)
	}

	conn := &Conn{
		identity:  identity,
		transport: transport,
		send:      make(chan *protocol.Envelope, r.sendBuf),
	}
	r.conns[identity.UserID] = conn
	r.roles[identity.Role][identity.UserID] = struct{}{}

	go conn.writeLoop(h)

	r.log.Info("connection registered", "user_id", identity.UserID, "role", identity.Role)
	r.notifyChange()
	return conn
}

// disconnect removes the identity's live connection, its role index
// entry, and all of its subscriptions. Disconnecting an absent identity
// is a no-op.
func (r *connectionRegistry) disconnect(userID int64) {
	conn, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(r.conns, userID)
	delete(r.roles[conn.identity.Role], userID)
	r.subs.clear(userID)
	r.teardown(conn)
	r.log.Info("connection removed", "user_id", userID)
	r.notifyChange()
}

// dropConn removes a specific connection. If the identity has since
// reconnected, the stale handle is ignored so the replacement survives.
func (r *connectionRegistry) dropConn(conn *Conn) {
	current, ok := r.conns[conn.identity.UserID]
	if !ok || current != conn {
		return
	}
	r.disconnect(conn.identity.UserID)
}

// teardown closes a connection's send channel and transport without
// touching the maps
func (r *connectionRegistry) teardown(conn *Conn) {
	if conn.closed {
		return
	}
	conn.closed = true
	close(conn.send)
	if err := conn.transport.Close(); err != nil {
		r.log.Debug("transport close failed", "user_id", conn.identity.UserID, "error", err)
	}
}

// send attempts delivery of one envelope. A full send buffer means the
// client stopped draining; the connection is treated as dead and
// disconnected.
func (r *connectionRegistry) send(userID int64, env *protocol.Envelope) DeliveryResult {
	conn, ok := r.conns[userID]
	if !ok {
		return NotConnected
	}
	select {
	case conn.send <- env:
		return Delivered
	default:
		r.log.Warn("send buffer full, disconnecting", "user_id", userID)
		r.disconnect(userID)
		return Failed
	}
}

// live reports whether the identity currently has a registered connection
func (r *connectionRegistry) live(userID int64) bool {
	_, ok := r.conns[userID]
	return ok
}

// roleMembers returns a snapshot of connected identities with the role
func (r *connectionRegistry) roleMembers(role protocol.Role) []int64 {
	members := r.roles[role]
	out := make([]int64, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// count returns the number of live connections
func (r *connectionRegistry) count() int {
	return len(r.conns)
}

// stats returns a diagnostic snapshot
func (r *connectionRegistry) stats() RegistryStats {
	byRole := make(map[protocol.Role]int, len(r.roles))
	for role, members := range r.roles {
		byRole[role] = len(members)
	}
	return RegistryStats{
		TotalConnections:  len(r.conns),
		ConnectionsByRole: byRole,
	}
}

func (r *connectionRegistry) notifyChange() {
	if r.onChange != nil {
		r.onChange()
	}
}
