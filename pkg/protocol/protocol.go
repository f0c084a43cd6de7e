// Package protocol defines the message types exchanged with websocket
// clients and the identity/entity types shared across the real-time hub.
// Inbound commands are decoded here; outbound envelopes are constructed
// here and are immutable once built.
package protocol

import (
	"fmt"
)

// Role is the closed set of user roles known to the system
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCourier   Role = "courier"
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// Roles lists every valid role, in a stable order
var Roles = []Role{RoleAdmin, RoleCourier, RoleSender, RoleRecipient}

// Valid reports whether the role is a member of the closed role set
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCourier, RoleSender, RoleRecipient:
		return true
	}
	return false
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Identity is an authenticated principal. It is supplied by the
// authenticator during the handshake and never changes for the
// lifetime of a connection.
type Identity struct {
	UserID int64
	Role   Role
}

func (id Identity) String() string {
	return fmt.Sprintf("user:%d(%s)", id.UserID, id.Role)
}

// Namespace distinguishes the two kinds of trackable entities.
// Numeric ids may collide across namespaces; the namespace is part
// of the reference.
type Namespace string

const (
	NamespacePackage  Namespace = "package"
	NamespaceDelivery Namespace = "delivery"
)

// EntityRef is a namespaced reference to a trackable entity
type EntityRef struct {
	Namespace Namespace
	ID        int64
}

// PackageRef returns an EntityRef in the package namespace
func PackageRef(id int64) EntityRef {
	return EntityRef{Namespace: NamespacePackage, ID: id}
}

// DeliveryRef returns an EntityRef in the delivery namespace
func DeliveryRef(id int64) EntityRef {
	return EntityRef{Namespace: NamespaceDelivery, ID: id}
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Namespace, r.ID)
}
