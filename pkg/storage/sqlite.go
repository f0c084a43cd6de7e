package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite database file
type SQLiteStore struct {
	dbStore
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{dbStore{db: db}}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		phone TEXT DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		sender_id INTEGER NOT NULL,
		courier_id INTEGER,
		recipient_name TEXT DEFAULT '',
		recipient_phone TEXT DEFAULT '',
		tracking_number TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (sender_id) REFERENCES users(id),
		FOREIGN KEY (courier_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_packages_sender ON packages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_packages_courier ON packages(courier_id);
	CREATE INDEX IF NOT EXISTS idx_packages_status ON packages(status);

	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		package_id INTEGER NOT NULL,
		courier_id INTEGER,
		status TEXT NOT NULL DEFAULT 'active',
		lat REAL DEFAULT 0,
		lng REAL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (package_id) REFERENCES packages(id),
		FOREIGN KEY (courier_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_package ON deliveries(package_id);
	CREATE INDEX IF NOT EXISTS idx_deliveries_courier ON deliveries(courier_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
