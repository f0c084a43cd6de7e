package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	pterrors "parceltrack/pkg/errors"
	"parceltrack/pkg/protocol"
)

// dbStore implements Store over database/sql. The SQL sticks to the
// dialect-neutral subset shared by SQLite and MySQL; only the schema
// differs per backend.
type dbStore struct {
	db *sql.DB
}

func (s *dbStore) Close() error {
	return s.db.Close()
}

// -- Users --

func (s *dbStore) CreateUser(user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO users (email, name, phone, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.Phone, user.PasswordHash, string(user.Role), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	user.ID, err = res.LastInsertId()
	return err
}

func (s *dbStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var role string
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Phone, &user.PasswordHash, &role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pterrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Role = protocol.Role(role)
	return &user, nil
}

func (s *dbStore) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, name, phone, password_hash, role, created_at FROM users WHERE id = ?`, id))
}

func (s *dbStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, name, phone, password_hash, role, created_at FROM users WHERE email = ?`, email))
}

func (s *dbStore) UserRole(userID int64) (protocol.Role, error) {
	var role string
	err := s.db.QueryRow(`SELECT role FROM users WHERE id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pterrors.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return protocol.ParseRole(role)
}

// -- Packages --

func (s *dbStore) CreatePackage(pkg *Package) error {
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now
	if pkg.Status == "" {
		pkg.Status = StatusPending
	}
	res, err := s.db.Exec(
		`INSERT INTO packages (title, status, sender_id, courier_id, recipient_name, recipient_phone, tracking_number, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.Title, string(pkg.Status), pkg.SenderID, pkg.CourierID,
		pkg.RecipientName, pkg.RecipientPhone, pkg.TrackingNumber, pkg.CreatedAt, pkg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating package: %w", err)
	}
	pkg.ID, err = res.LastInsertId()
	return err
}

const packageColumns = `id, title, status, sender_id, courier_id, recipient_name, recipient_phone, tracking_number, created_at, updated_at`

func scanPackage(scan func(dest ...any) error) (*Package, error) {
	var pkg Package
	var status string
	var courierID sql.NullInt64
	err := scan(&pkg.ID, &pkg.Title, &status, &pkg.SenderID, &courierID,
		&pkg.RecipientName, &pkg.RecipientPhone, &pkg.TrackingNumber, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pkg.Status = PackageStatus(status)
	if courierID.Valid {
		pkg.CourierID = &courierID.Int64
	}
	return &pkg, nil
}

func (s *dbStore) GetPackage(id int64) (*Package, error) {
	row := s.db.QueryRow(`SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
	pkg, err := scanPackage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pterrors.ErrPackageNotFound
	}
	return pkg, err
}

func (s *dbStore) queryPackages(query string, args ...any) ([]*Package, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Package
	for rows.Next() {
		pkg, err := scanPackage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, rows.Err()
}

func (s *dbStore) ListPackages() ([]*Package, error) {
	return s.queryPackages(`SELECT ` + packageColumns + ` FROM packages ORDER BY created_at DESC`)
}

func (s *dbStore) UpdatePackageStatus(id int64, status PackageStatus) error {
	res, err := s.db.Exec(
		`UPDATE packages SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating package status: %w", err)
	}
	return ensureOneRow(res, pterrors.ErrPackageNotFound)
}

func (s *dbStore) AssignCourier(packageID, courierID int64) error {
	res, err := s.db.Exec(
		`UPDATE packages SET courier_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		courierID, string(StatusAssigned), time.Now().UTC(), packageID,
	)
	if err != nil {
		return fmt.Errorf("assigning courier: %w", err)
	}
	return ensureOneRow(res, pterrors.ErrPackageNotFound)
}

// -- Deliveries --

func (s *dbStore) CreateDelivery(delivery *Delivery) error {
	delivery.UpdatedAt = time.Now().UTC()
	if delivery.Status == "" {
		delivery.Status = "active"
	}
	res, err := s.db.Exec(
		`INSERT INTO deliveries (package_id, courier_id, status, lat, lng, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		delivery.PackageID, delivery.CourierID, delivery.Status, delivery.Lat, delivery.Lng, delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating delivery: %w", err)
	}
	delivery.ID, err = res.LastInsertId()
	return err
}

func (s *dbStore) GetDelivery(id int64) (*Delivery, error) {
	var d Delivery
	var courierID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, package_id, courier_id, status, lat, lng, updated_at FROM deliveries WHERE id = ?`, id,
	).Scan(&d.ID, &d.PackageID, &courierID, &d.Status, &d.Lat, &d.Lng, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pterrors.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	if courierID.Valid {
		d.CourierID = &courierID.Int64
	}
	return &d, nil
}

func (s *dbStore) UpdateDeliveryLocation(id int64, lat, lng float64) error {
	res, err := s.db.Exec(
		`UPDATE deliveries SET lat = ?, lng = ?, updated_at = ? WHERE id = ?`,
		lat, lng, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating delivery location: %w", err)
	}
	return ensureOneRow(res, pterrors.ErrDeliveryNotFound)
}

// -- Ownership --

// InitialSubscriptions resolves the packages and deliveries an
// identity should start out subscribed to. The per-role rules live
// here, in one place, rather than being re-derived by callers.
func (s *dbStore) InitialSubscriptions(identity protocol.Identity) ([]protocol.EntityRef, error) {
	var pkgQuery string
	var pkgArgs []any
	var delQuery string
	var delArgs []any

	switch identity.Role {
	case protocol.RoleAdmin:
		pkgQuery = `SELECT id FROM packages`
		delQuery = `SELECT id FROM deliveries`
	case protocol.RoleCourier:
		// Assigned packages plus the unassigned pool
		pkgQuery = `SELECT id FROM packages WHERE courier_id = ? OR courier_id IS NULL`
		pkgArgs = []any{identity.UserID}
		delQuery = `SELECT id FROM deliveries WHERE courier_id = ?`
		delArgs = []any{identity.UserID}
	case protocol.RoleSender:
		pkgQuery = `SELECT id FROM packages WHERE sender_id = ?`
		pkgArgs = []any{identity.UserID}
		delQuery = `SELECT d.id FROM deliveries d JOIN packages p ON d.package_id = p.id WHERE p.sender_id = ?`
		delArgs = []any{identity.UserID}
	case protocol.RoleRecipient:
		user, err := s.GetUserByID(identity.UserID)
		if err != nil {
			return nil, err
		}
		pkgQuery = `SELECT id FROM packages WHERE recipient_name = ? OR recipient_phone = ?`
		pkgArgs = []any{user.Name, user.Phone}
		delQuery = `SELECT d.id FROM deliveries d JOIN packages p ON d.package_id = p.id WHERE p.recipient_name = ? OR p.recipient_phone = ?`
		delArgs = []any{user.Name, user.Phone}
	default:
		return nil, fmt.Errorf("unknown role: %s", identity.Role)
	}

	var refs []protocol.EntityRef
	pkgIDs, err := s.queryIDs(pkgQuery, pkgArgs...)
	if err != nil {
		return nil, err
	}
	for _, id := range pkgIDs {
		refs = append(refs, protocol.PackageRef(id))
	}

	delIDs, err := s.queryIDs(delQuery, delArgs...)
	if err != nil {
		return nil, err
	}
	for _, id := range delIDs {
		refs = append(refs, protocol.DeliveryRef(id))
	}
	return refs, nil
}

func (s *dbStore) queryIDs(query string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func ensureOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
