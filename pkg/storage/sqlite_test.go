package storage

import (
	"errors"
	"path/filepath"
	"testing"

	pterrors "parceltrack/pkg/errors"
	"parceltrack/pkg/protocol"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateUser(t *testing.T, store Store, email, name, phone string, role protocol.Role) *User {
	t.Helper()
	user := &User{
		Email:        email,
		Name:         name,
		Phone:        phone,
		PasswordHash: "x",
		Role:         role,
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func mustCreatePackage(t *testing.T, store Store, pkg *Package) *Package {
	t.Helper()
	if err := store.CreatePackage(pkg); err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	return pkg
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	user := mustCreateUser(t, store, "a@example.com", "Alice", "555-0001", protocol.RoleSender)

	byID, err := store.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != "a@example.com" || byID.Role != protocol.RoleSender {
		t.Errorf("unexpected user: %+v", byID)
	}

	byEmail, err := store.GetUserByEmail("a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("expected id %d, got %d", user.ID, byEmail.ID)
	}

	role, err := store.UserRole(user.ID)
	if err != nil || role != protocol.RoleSender {
		t.Errorf("UserRole = %v, %v", role, err)
	}
}

func TestUserNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetUserByID(99); !errors.Is(err, pterrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.UserRole(99); !errors.Is(err, pterrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPackageLifecycle(t *testing.T) {
	store := newTestStore(t)
	sender := mustCreateUser(t, store, "s@example.com", "Sam", "555-0002", protocol.RoleSender)
	courier := mustCreateUser(t, store, "c@example.com", "Cory", "555-0003", protocol.RoleCourier)

	pkg := mustCreatePackage(t, store, &Package{
		Title:          "Books",
		SenderID:       sender.ID,
		RecipientName:  "Rita",
		RecipientPhone: "555-0100",
		TrackingNumber: "PT-1001",
	})
	if pkg.Status != StatusPending {
		t.Errorf("expected pending status, got %s", pkg.Status)
	}

	if err := store.AssignCourier(pkg.ID, courier.ID); err != nil {
		t.Fatalf("AssignCourier failed: %v", err)
	}
	got, _ := store.GetPackage(pkg.ID)
	if got.Status != StatusAssigned || got.CourierID == nil || *got.CourierID != courier.ID {
		t.Errorf("unexpected package after assignment: %+v", got)
	}

	if err := store.UpdatePackageStatus(pkg.ID, StatusDelivered); err != nil {
		t.Fatalf("UpdatePackageStatus failed: %v", err)
	}
	got, _ = store.GetPackage(pkg.ID)
	if got.Status != StatusDelivered {
		t.Errorf("expected delivered, got %s", got.Status)
	}

	if err := store.UpdatePackageStatus(999, StatusFailed); !errors.Is(err, pterrors.ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}

	list, err := store.ListPackages()
	if err != nil || len(list) != 1 {
		t.Errorf("ListPackages = %v, %v", list, err)
	}
}

func TestDeliveryLocation(t *testing.T) {
	store := newTestStore(t)
	sender := mustCreateUser(t, store, "s@example.com", "Sam", "", protocol.RoleSender)
	courier := mustCreateUser(t, store, "c@example.com", "Cory", "", protocol.RoleCourier)
	pkg := mustCreatePackage(t, store, &Package{Title: "Box", SenderID: sender.ID})

	delivery := &Delivery{PackageID: pkg.ID, CourierID: &courier.ID}
	if err := store.CreateDelivery(delivery); err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	if err := store.UpdateDeliveryLocation(delivery.ID, 12.34, 56.78); err != nil {
		t.Fatalf("UpdateDeliveryLocation failed: %v", err)
	}
	got, err := store.GetDelivery(delivery.ID)
	if err != nil {
		t.Fatalf("GetDelivery failed: %v", err)
	}
	if got.Lat != 12.34 || got.Lng != 56.78 {
		t.Errorf("unexpected location: %f,%f", got.Lat, got.Lng)
	}

	if err := store.UpdateDeliveryLocation(999, 0, 0); !errors.Is(err, pterrors.ErrDeliveryNotFound) {
		t.Errorf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestInitialSubscriptionsByRole(t *testing.T) {
	store := newTestStore(t)
	adminUser := mustCreateUser(t, store, "admin@example.com", "Ada", "", protocol.RoleAdmin)
	courierUser := mustCreateUser(t, store, "c@example.com", "Cory", "", protocol.RoleCourier)
	senderUser := mustCreateUser(t, store, "s@example.com", "Sam", "", protocol.RoleSender)
	recipientUser := mustCreateUser(t, store, "r@example.com", "Rita", "555-0100", protocol.RoleRecipient)

	// Package assigned to the courier, sent by the sender
	assigned := mustCreatePackage(t, store, &Package{
		Title: "Assigned", SenderID: senderUser.ID, CourierID: &courierUser.ID,
		RecipientName: "Rita", RecipientPhone: "555-0100",
	})
	// Unassigned pool package from another sender
	unassigned := mustCreatePackage(t, store, &Package{
		Title: "Unassigned", SenderID: adminUser.ID, RecipientName: "Nobody",
	})

	delivery := &Delivery{PackageID: assigned.ID, CourierID: &courierUser.ID}
	if err := store.CreateDelivery(delivery); err != nil {
		t.Fatal(err)
	}

	refs := func(identity protocol.Identity) map[protocol.EntityRef]bool {
		t.Helper()
		list, err := store.InitialSubscriptions(identity)
		if err != nil {
			t.Fatalf("InitialSubscriptions(%v) failed: %v", identity, err)
		}
		set := make(map[protocol.EntityRef]bool, len(list))
		for _, r := range list {
			set[r] = true
		}
		return set
	}

	adminRefs := refs(protocol.Identity{UserID: adminUser.ID, Role: protocol.RoleAdmin})
	if !adminRefs[protocol.PackageRef(assigned.ID)] || !adminRefs[protocol.PackageRef(unassigned.ID)] || !adminRefs[protocol.DeliveryRef(delivery.ID)] {
		t.Errorf("admin should see everything, got %v", adminRefs)
	}

	courierRefs := refs(protocol.Identity{UserID: courierUser.ID, Role: protocol.RoleCourier})
	if !courierRefs[protocol.PackageRef(assigned.ID)] || !courierRefs[protocol.PackageRef(unassigned.ID)] {
		t.Errorf("courier should see assigned and unassigned packages, got %v", courierRefs)
	}
	if !courierRefs[protocol.DeliveryRef(delivery.ID)] {
		t.Errorf("courier should see own deliveries, got %v", courierRefs)
	}

	senderRefs := refs(protocol.Identity{UserID: senderUser.ID, Role: protocol.RoleSender})
	if !senderRefs[protocol.PackageRef(assigned.ID)] {
		t.Errorf("sender should see own package, got %v", senderRefs)
	}
	if senderRefs[protocol.PackageRef(unassigned.ID)] {
		t.Errorf("sender should not see other senders' packages, got %v", senderRefs)
	}
	if !senderRefs[protocol.DeliveryRef(delivery.ID)] {
		t.Errorf("sender should see deliveries of own packages, got %v", senderRefs)
	}

	recipientRefs := refs(protocol.Identity{UserID: recipientUser.ID, Role: protocol.RoleRecipient})
	if !recipientRefs[protocol.PackageRef(assigned.ID)] {
		t.Errorf("recipient should see packages addressed to them, got %v", recipientRefs)
	}
	if recipientRefs[protocol.PackageRef(unassigned.ID)] {
		t.Errorf("recipient should not see unrelated packages, got %v", recipientRefs)
	}
}
