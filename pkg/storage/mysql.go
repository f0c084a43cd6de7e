package storage

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using a MySQL backend. The DSN must
// include parseTime=true so DATETIME columns scan into time.Time.
type MySQLStore struct {
	dbStore
}

// NewMySQLStore opens a MySQL-backed store
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	store := &MySQLStore{dbStore{db: db}}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initDB() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(64) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS packages (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			title VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			sender_id BIGINT NOT NULL,
			courier_id BIGINT,
			recipient_name VARCHAR(255) NOT NULL DEFAULT '',
			recipient_phone VARCHAR(64) NOT NULL DEFAULT '',
			tracking_number VARCHAR(64) NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_packages_sender (sender_id),
			INDEX idx_packages_courier (courier_id),
			INDEX idx_packages_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			package_id BIGINT NOT NULL,
			courier_id BIGINT,
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			lat DOUBLE NOT NULL DEFAULT 0,
			lng DOUBLE NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_deliveries_package (package_id),
			INDEX idx_deliveries_courier (courier_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
