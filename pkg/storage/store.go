// Package storage provides persistent data storage for parceltrack.
//
// It defines the Store interface over users, packages, and deliveries,
// with SQLite as the primary backend and MySQL as an alternative
// selected through the factory. The store also answers the ownership
// query used to auto-subscribe a connecting client to the entities its
// role entitles it to.
package storage

import (
	"time"

	"parceltrack/pkg/protocol"
)

// PackageStatus is the lifecycle state of a package
type PackageStatus string

const (
	StatusPending   PackageStatus = "pending"
	StatusAssigned  PackageStatus = "assigned"
	StatusPickedUp  PackageStatus = "picked_up"
	StatusInTransit PackageStatus = "in_transit"
	StatusDelivered PackageStatus = "delivered"
	StatusFailed    PackageStatus = "failed"
)

// Valid reports whether the status is a known lifecycle state
func (s PackageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusPickedUp, StatusInTransit, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// User is a registered account
type User struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone"`
	PasswordHash string        `json:"-"`
	Role         protocol.Role `json:"role"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Package is a tracked shipment
type Package struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Status         PackageStatus `json:"status"`
	SenderID       int64         `json:"sender_id"`
	CourierID      *int64        `json:"courier_id,omitempty"`
	RecipientName  string        `json:"recipient_name"`
	RecipientPhone string        `json:"recipient_phone"`
	TrackingNumber string        `json:"tracking_number"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Delivery is a courier run for a package, carrying its last known
// position
type Delivery struct {
	ID        int64     `json:"id"`
	PackageID int64     `json:"package_id"`
	CourierID *int64    `json:"courier_id,omitempty"`
	Status    string    `json:"status"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines persistent storage operations
type Store interface {
	// User operations
	CreateUser(user *User) error
	GetUserByID(id int64) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UserRole(userID int64) (protocol.Role, error)

	// Package operations
	CreatePackage(pkg *Package) error
	GetPackage(id int64) (*Package, error)
	ListPackages() ([]*Package, error)
	UpdatePackageStatus(id int64, status PackageStatus) error
	AssignCourier(packageID, courierID int64) error

	// Delivery operations
	CreateDelivery(delivery *Delivery) error
	GetDelivery(id int64) (*Delivery, error)
	UpdateDeliveryLocation(id int64, lat, lng float64) error

	// InitialSubscriptions resolves the entity set an identity is
	// auto-subscribed to on connect, according to its role
	InitialSubscriptions(identity protocol.Identity) ([]protocol.EntityRef, error)

	// Lifecycle
	Close() error
}
