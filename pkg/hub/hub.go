package hub

import (
	"sync"

	pterrors "parceltrack/pkg/errors"
	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
)

const (
	defaultSendBufferSize  = 64
	defaultNotifyQueueSize = 256
)

// OwnershipQuery supplies the entity set an identity should be
// auto-subscribed to when it connects. Resolved once per connect;
// role-specific filtering lives behind this interface, not in the hub.
type OwnershipQuery interface {
	InitialSubscriptions(identity protocol.Identity) ([]protocol.EntityRef, error)
}

// Config holds hub tuning knobs
type Config struct {
	// SendBufferSize is the per-connection outbound buffer; a client
	// that falls this far behind is disconnected
	SendBufferSize int
	// NotifyQueueSize bounds the serving loop's work queue
	NotifyQueueSize int
	// Ownership resolves initial subscriptions on connect; may be nil
	Ownership OwnershipQuery
}

// Hub owns the live connection set and fans events out to it. All
// state is confined to the serving goroutine started by Start; public
// methods marshal onto it through the work queue.
type Hub struct {
	registry   *connectionRegistry
	subs       *subscriptionIndex
	dispatcher *dispatcher
	bridge     *Bridge
	ownership  OwnershipQuery

	work chan func()
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once
	log      *logger.Logger
}

// New creates a hub. Call Start before accepting connections.
func New(cfg Config) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.NotifyQueueSize <= 0 {
		cfg.NotifyQueueSize = defaultNotifyQueueSize
	}

	subs := newSubscriptionIndex()
	registry := newConnectionRegistry(subs, cfg.SendBufferSize)
	subs.live = registry.live
	disp := newDispatcher(registry, subs)

	h := &Hub{
		registry:   registry,
		subs:       subs,
		dispatcher: disp,
		ownership:  cfg.Ownership,
		work:       make(chan func(), cfg.NotifyQueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.Component("hub"),
	}
	h.bridge = newBridge(func(target BroadcastTarget, env *protocol.Envelope) {
		disp.broadcast(target, env)
	})
	registry.onChange = func() {
		if registry.count() > 0 {
			h.bridge.bind(h.work)
		} else {
			h.bridge.clear()
		}
	}
	return h
}

// Start launches the serving goroutine
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts the serving loop down, disconnecting every client.
// Blocks until the loop has exited.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}

// Bridge returns the cross-goroutine notification entry point for
// write-path services
func (h *Hub) Bridge() *Bridge {
	return h.bridge
}

func (h *Hub) run() {
	defer close(h.done)
	h.log.Info("serving loop started")

	for {
		select {
		case fn := <-h.work:
			fn()
		case <-h.quit:
			h.bridge.clear()
			ids := make([]int64, 0, len(h.registry.conns))
			for id := range h.registry.conns {
				ids = append(ids, id)
			}
			for _, id := range ids {
				h.registry.disconnect(id)
			}
			h.log.Info("serving loop stopped")
			return
		}
	}
}

// do runs fn on the serving goroutine and waits for it to complete
func (h *Hub) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case h.work <- func() {
		fn()
		close(ran)
	}:
	case <-h.done:
		return pterrors.ErrHubStopped
	}
	select {
	case <-ran:
		return nil
	case <-h.done:
		return pterrors.ErrHubStopped
	}
}

// enqueue runs fn on the serving goroutine without waiting; dropped if
// the loop has exited
func (h *Hub) enqueue(fn func()) {
	select {
	case h.work <- fn:
	case <-h.done:
	}
}

// Connect registers an authenticated identity with its transport,
// sends the welcome envelope, and auto-subscribes the identity to the
// entities the ownership query resolves for it. The returned Conn is
// the caller's handle for HandleInbound and Disconnect.
func (h *Hub) Connect(identity protocol.Identity, transport Transport) (*Conn, error) {
	// Resolve ownership outside the serving loop; it may hit storage.
	var refs []protocol.EntityRef
	if h.ownership != nil {
		var err error
		refs, err = h.ownership.InitialSubscriptions(identity)
		if err != nil {
			h.log.ErrorWithErr("initial subscription query failed", err, "user_id", identity.UserID)
			refs = nil
		}
	}

	var conn *Conn
	err := h.do(func() {
		conn = h.registry.connect(h, identity, transport)
		h.registry.send(identity.UserID, protocol.ConnectionEstablished(identity.UserID, identity.Role))
		for _, ref := range refs {
			h.subs.subscribe(identity.UserID, ref)
			h.registry.send(identity.UserID, protocol.SubscriptionAck(ref, true))
		}
	})
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		h.log.Info("auto-subscribed", "user_id", identity.UserID, "entities", len(refs))
	}
	return conn, nil
}

// Disconnect removes the connection if it is still the registered one
// for its identity. Idempotent; safe after a reconnect replaced it.
func (h *Hub) Disconnect(conn *Conn) {
	_ = h.do(func() {
		h.registry.dropConn(conn)
	})
}

// SendTo delivers one envelope to one identity from outside the
// serving loop
func (h *Hub) SendTo(userID int64, env *protocol.Envelope) (DeliveryResult, error) {
	var res DeliveryResult
	err := h.do(func() {
		res = h.dispatcher.sendTo(userID, env)
	})
	return res, err
}

// Broadcast resolves the target and delivers the envelope to each
// recipient, from outside the serving loop. Returns the number of
// accepted deliveries.
func (h *Hub) Broadcast(target BroadcastTarget, env *protocol.Envelope) (int, error) {
	var n int
	err := h.do(func() {
		n = h.dispatcher.broadcast(target, env)
	})
	return n, err
}

// StatsSnapshot is the diagnostic view served to admins
type StatsSnapshot struct {
	TotalConnections           int            `json:"total_connections"`
	ConnectionsByRole          map[string]int `json:"connections_by_role"`
	TotalPackageSubscriptions  int            `json:"total_package_subscriptions"`
	TotalDeliverySubscriptions int            `json:"total_delivery_subscriptions"`
}

// Stats returns a point-in-time snapshot of connections and
// subscriptions
func (h *Hub) Stats() (StatsSnapshot, error) {
	var snap StatsSnapshot
	err := h.do(func() {
		snap = h.statsLocked()
	})
	return snap, err
}

// statsLocked must run on the serving goroutine
func (h *Hub) statsLocked() StatsSnapshot {
	reg := h.registry.stats()
	pkgs, dels := h.subs.counts()
	byRole := make(map[string]int, len(reg.ConnectionsByRole))
	for role, n := range reg.ConnectionsByRole {
		byRole[string(role)] = n
	}
	return StatsSnapshot{
		TotalConnections:           reg.TotalConnections,
		ConnectionsByRole:          byRole,
		TotalPackageSubscriptions:  pkgs,
		TotalDeliverySubscriptions: dels,
	}
}
