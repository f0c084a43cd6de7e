package hub

import (
	"parceltrack/pkg/protocol"
)

// subscriptionIndex tracks, per identity, the package and delivery
// entities it wants updates for. The two namespaces are independent;
// ids may collide numerically without interference. All methods must be
// called from the serving goroutine.
type subscriptionIndex struct {
	packages   map[int64]map[int64]struct{}
	deliveries map[int64]map[int64]struct{}

	// live is the registry's liveness check; subscriptions must never
	// outlive their identity's connection.
	live func(userID int64) bool
}

func newSubscriptionIndex() *subscriptionIndex {
	return &subscriptionIndex{
		packages:   make(map[int64]map[int64]struct{}),
		deliveries: make(map[int64]map[int64]struct{}),
	}
}

func (s *subscriptionIndex) namespace(ns protocol.Namespace) map[int64]map[int64]struct{} {
	if ns == protocol.NamespaceDelivery {
		return s.deliveries
	}
	return s.packages
}

// subscribe adds an entity to the identity's subscription set.
// Idempotent; a no-op for identities without a live connection so the
// index can never hold orphaned entries.
func (s *subscriptionIndex) subscribe(userID int64, ref protocol.EntityRef) {
	if s.live != nil && !s.live(userID) {
		return
	}
	byUser := s.namespace(ref.Namespace)
	set, ok := byUser[userID]
	if !ok {
		set = make(map[int64]struct{})
		byUser[userID] = set
	}
	set[ref.ID] = struct{}{}
}

// unsubscribe removes an entity from the identity's subscription set.
// Idempotent.
func (s *subscriptionIndex) unsubscribe(userID int64, ref protocol.EntityRef) {
	if set, ok := s.namespace(ref.Namespace)[userID]; ok {
		delete(set, ref.ID)
	}
}

// subscribersOf returns a snapshot of every identity subscribed to the
// entity, within its namespace only
func (s *subscriptionIndex) subscribersOf(ref protocol.EntityRef) []int64 {
	var out []int64
	for userID, set := range s.namespace(ref.Namespace) {
		if _, ok := set[ref.ID]; ok {
			out = append(out, userID)
		}
	}
	return out
}

// clear removes all subscriptions for the identity in both namespaces.
// Called from the registry on disconnect, and nowhere else.
func (s *subscriptionIndex) clear(userID int64) {
	delete(s.packages, userID)
	delete(s.deliveries, userID)
}

// counts returns the total number of package and delivery subscriptions
func (s *subscriptionIndex) counts() (packages, deliveries int) {
	for _, set := range s.packages {
		packages += len(set)
	}
	for _, set := range s.deliveries {
		deliveries += len(set)
	}
	return packages, deliveries
}
