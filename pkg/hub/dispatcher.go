package hub

import (
	"fmt"

	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
)

type targetKind int

const (
	targetUnicast targetKind = iota
	targetRole
	targetSubscribers
)

// BroadcastTarget names a logical set of recipients. It is resolved to
// concrete identities at send time and never stored.
type BroadcastTarget struct {
	kind   targetKind
	userID int64
	role   protocol.Role
	ref    protocol.EntityRef
}

// Unicast targets a single identity
func Unicast(userID int64) BroadcastTarget {
	return BroadcastTarget{kind: targetUnicast, userID: userID}
}

// RoleBroadcast targets every identity connected with the role
func RoleBroadcast(role protocol.Role) BroadcastTarget {
	return BroadcastTarget{kind: targetRole, role: role}
}

// SubscriberBroadcast targets every identity subscribed to the entity
func SubscriberBroadcast(ref protocol.EntityRef) BroadcastTarget {
	return BroadcastTarget{kind: targetSubscribers, ref: ref}
}

func (t BroadcastTarget) String() string {
	switch t.kind {
	case targetRole:
		return fmt.Sprintf("role:%s", t.role)
	case targetSubscribers:
		return fmt.Sprintf("subscribers:%s", t.ref)
	default:
		return fmt.Sprintf("user:%d", t.userID)
	}
}

// dispatcher resolves broadcast targets against the registry and
// subscription index and fans envelopes out to each recipient
// independently. All methods must be called from the serving goroutine.
type dispatcher struct {
	registry *connectionRegistry
	subs     *subscriptionIndex
	log      *logger.Logger
}

func newDispatcher(registry *connectionRegistry, subs *subscriptionIndex) *dispatcher {
	return &dispatcher{
		registry: registry,
		subs:     subs,
		log:      logger.Component("dispatcher"),
	}
}

// sendTo delivers one envelope to one identity
func (d *dispatcher) sendTo(userID int64, env *protocol.Envelope) DeliveryResult {
	return d.registry.send(userID, env)
}

// broadcast resolves the target to a snapshot of identities and sends
// to each. A failure for one recipient never aborts delivery to the
// others; unreachable recipients are skipped. Returns the number of
// accepted deliveries.
func (d *dispatcher) broadcast(target BroadcastTarget, env *protocol.Envelope) int {
	var recipients []int64
	switch target.kind {
	case targetUnicast:
		recipients = []int64{target.userID}
	case targetRole:
		recipients = d.registry.roleMembers(target.role)
	case targetSubscribers:
		recipients = d.subs.subscribersOf(target.ref)
	}

	delivered := 0
	for _, userID := range recipients {
		switch d.registry.send(userID, env) {
		case Delivered:
			delivered++
		case NotConnected:
			// disconnected between snapshot and send; skip
		case Failed:
			d.log.Debug("delivery failed during broadcast", "user_id", userID, "envelope", env.Type)
		}
	}

	if len(recipients) > 0 {
		d.log.Debug("broadcast resolved", "target", target.String(), "envelope", env.Type, "recipients", len(recipients), "delivered", delivered)
	}
	return delivered
}
