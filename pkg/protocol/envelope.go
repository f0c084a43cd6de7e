package protocol

import (
	"encoding/json"
	"time"
)

// EnvelopeType discriminates outbound messages
type EnvelopeType string

const (
	EnvConnectionEstablished EnvelopeType = "connection_established"
	EnvPong                  EnvelopeType = "pong"
	EnvPackageSubscribed     EnvelopeType = "package_subscribed"
	EnvPackageUnsubscribed   EnvelopeType = "package_unsubscribed"
	EnvDeliverySubscribed    EnvelopeType = "delivery_subscribed"
	EnvDeliveryUnsubscribed  EnvelopeType = "delivery_unsubscribed"
	EnvPackageUpdate         EnvelopeType = "package_update"
	EnvDeliveryLocation      EnvelopeType = "delivery_location"
	EnvPackageCreated        EnvelopeType = "package_created"
	EnvNewPackageAvailable   EnvelopeType = "new_package_available"
	EnvPackageAssigned       EnvelopeType = "package_assigned_to_you"
	EnvPackagePickedUp       EnvelopeType = "package_picked_up"
	EnvPackageDelivered      EnvelopeType = "package_delivered"
	EnvDeliveryFailed        EnvelopeType = "delivery_failed"
	EnvSystemAnnouncement    EnvelopeType = "system_announcement"
	EnvStats                 EnvelopeType = "stats"
	EnvError                 EnvelopeType = "error"
)

// Envelope is a single outbound message. One envelope may be delivered
// to zero, one, or many recipients; it must not be mutated after
// construction.
type Envelope struct {
	Type      EnvelopeType
	Timestamp time.Time
	fields    map[string]any
}

// NewEnvelope builds an envelope of the given type carrying the given
// payload fields. The fields map is copied.
func NewEnvelope(t EnvelopeType, fields map[string]any) *Envelope {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Envelope{
		Type:      t,
		Timestamp: time.Now().UTC(),
		fields:    copied,
	}
}

// Field returns a payload field by name
func (e *Envelope) Field(name string) (any, bool) {
	v, ok := e.fields[name]
	return v, ok
}

// MarshalJSON flattens the payload fields alongside type and timestamp
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.fields)+2)
	for k, v := range e.fields {
		out[k] = v
	}
	out["type"] = string(e.Type)
	out["timestamp"] = e.Timestamp.Format(time.RFC3339)
	return json.Marshal(out)
}

// ConnectionEstablished is the welcome envelope sent right after a
// successful handshake
func ConnectionEstablished(userID int64, role Role) *Envelope {
	return NewEnvelope(EnvConnectionEstablished, map[string]any{
		"message": "Connected to real-time updates",
		"user_id": userID,
		"role":    string(role),
	})
}

// Pong answers an inbound ping
func Pong() *Envelope {
	return NewEnvelope(EnvPong, nil)
}

// SubscriptionAck confirms a subscribe or unsubscribe command for the
// given entity
func SubscriptionAck(ref EntityRef, subscribed bool) *Envelope {
	var t EnvelopeType
	switch {
	case ref.Namespace == NamespacePackage && subscribed:
		t = EnvPackageSubscribed
	case ref.Namespace == NamespacePackage:
		t = EnvPackageUnsubscribed
	case subscribed:
		t = EnvDeliverySubscribed
	default:
		t = EnvDeliveryUnsubscribed
	}
	return NewEnvelope(t, map[string]any{
		string(ref.Namespace) + "_id": ref.ID,
	})
}

// PackageUpdate notifies subscribers that a package changed
func PackageUpdate(packageID int64, updateType string, pkg any) *Envelope {
	return NewEnvelope(EnvPackageUpdate, map[string]any{
		"update_type": updateType,
		"package_id":  packageID,
		"package":     pkg,
	})
}

// DeliveryLocation notifies subscribers of new courier coordinates
func DeliveryLocation(deliveryID int64, lat, lng float64) *Envelope {
	return NewEnvelope(EnvDeliveryLocation, map[string]any{
		"delivery_id": deliveryID,
		"lat":         lat,
		"lng":         lng,
	})
}

// Stats carries a diagnostic snapshot; sent to admins only
func Stats(data any) *Envelope {
	return NewEnvelope(EnvStats, map[string]any{
		"data": data,
	})
}

// ErrorEnvelope reports a per-connection error without closing it
func ErrorEnvelope(message string) *Envelope {
	return NewEnvelope(EnvError, map[string]any{
		"message": message,
	})
}
