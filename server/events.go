package server

import (
	"parceltrack/pkg/hub"
	"parceltrack/pkg/logger"
	"parceltrack/pkg/protocol"
	"parceltrack/pkg/storage"
)

// Events translates committed domain changes into hub notifications.
// Every method may be called from any request-handling goroutine; the
// bridge handles the crossing into the hub's serving loop, and every
// notification is best effort.
type Events struct {
	bridge *hub.Bridge
	log    *logger.Logger
}

// NewEvents creates the write-path event translator
func NewEvents(bridge *hub.Bridge) *Events {
	return &Events{
		bridge: bridge,
		log:    logger.Component("events"),
	}
}

// PackageCreated announces a new package to admins and to couriers
// looking for work
func (e *Events) PackageCreated(pkg *storage.Package) {
	e.bridge.Notify(hub.RoleBroadcast(protocol.RoleAdmin),
		protocol.NewEnvelope(protocol.EnvPackageCreated, map[string]any{
			"package": pkg,
		}))
	e.bridge.Notify(hub.RoleBroadcast(protocol.RoleCourier),
		protocol.NewEnvelope(protocol.EnvNewPackageAvailable, map[string]any{
			"package": pkg,
		}))
	e.log.Debug("package created notifications sent", "package_id", pkg.ID)
}

// PackageStatusUpdated fans the update out to subscribers and sends
// the targeted notifications the new status calls for
func (e *Events) PackageStatusUpdated(pkg *storage.Package, oldStatus storage.PackageStatus) {
	e.bridge.Notify(hub.SubscriberBroadcast(protocol.PackageRef(pkg.ID)),
		protocol.PackageUpdate(pkg.ID, "status_updated", pkg))

	switch pkg.Status {
	case storage.StatusAssigned:
		if pkg.CourierID != nil {
			e.bridge.Notify(hub.Unicast(*pkg.CourierID),
				protocol.NewEnvelope(protocol.EnvPackageAssigned, map[string]any{
					"package_id": pkg.ID,
				}))
		}
	case storage.StatusPickedUp:
		e.bridge.Notify(hub.Unicast(pkg.SenderID),
			protocol.NewEnvelope(protocol.EnvPackagePickedUp, map[string]any{
				"package_id": pkg.ID,
			}))
	case storage.StatusDelivered:
		e.bridge.Notify(hub.Unicast(pkg.SenderID),
			protocol.NewEnvelope(protocol.EnvPackageDelivered, map[string]any{
				"package_id": pkg.ID,
			}))
	case storage.StatusFailed:
		failed := protocol.NewEnvelope(protocol.EnvDeliveryFailed, map[string]any{
			"package_id": pkg.ID,
		})
		e.bridge.Notify(hub.Unicast(pkg.SenderID), failed)
		if pkg.CourierID != nil {
			e.bridge.Notify(hub.Unicast(*pkg.CourierID), failed)
		}
	}
	e.log.Debug("status update notifications sent", "package_id", pkg.ID, "old", oldStatus, "new", pkg.Status)
}

// DeliveryLocationUpdated pushes new coordinates to everyone tracking
// the delivery
func (e *Events) DeliveryLocationUpdated(deliveryID int64, lat, lng float64) {
	e.bridge.Notify(hub.SubscriberBroadcast(protocol.DeliveryRef(deliveryID)),
		protocol.DeliveryLocation(deliveryID, lat, lng))
}

// Announce sends a system announcement to the given roles, or to every
// role when none are named
func (e *Events) Announce(message string, roles ...protocol.Role) {
	if len(roles) == 0 {
		roles = protocol.Roles
	}
	env := protocol.NewEnvelope(protocol.EnvSystemAnnouncement, map[string]any{
		"message": message,
	})
	for _, role := range roles {
		e.bridge.Notify(hub.RoleBroadcast(role), env)
	}
}
