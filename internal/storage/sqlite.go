package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"prepcoach/internal/logging"
)

// SQLiteAdapter persists key-value records in a single sqlite table.
// The connection is serialized (one open conn, WAL mode) so concurrent
// manager writes queue at the driver rather than failing with SQLITE_BUSY.
type SQLiteAdapter struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLiteAdapter opens (or creates) the database at the given path.
// Pass ":memory:" for an ephemeral store in tests.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteAdapter")
	defer timer.Stop()

	logging.Store("Opening kv store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	a := &SQLiteAdapter{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		logging.StoreError("Failed to run migrations: %v", err)
		db.Close()
		return nil, err
	}

	logging.StoreDebug("Database schema initialized successfully")
	return a, nil
}

// initialize creates the base schema for fresh databases.
func (a *SQLiteAdapter) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_records (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return ensureSchemaVersion(a.db)
}

// Get returns the stored value for key.
func (a *SQLiteAdapter) Get(key string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var value string
	err := a.db.QueryRow("SELECT value FROM kv_records WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		logging.StoreError("Failed to read key %s: %v", key, err)
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any existing value.
func (a *SQLiteAdapter) Set(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	logging.StoreDebug("Writing key=%s value_len=%d", key, len(value))

	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO kv_records (key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value,
	)
	if err != nil {
		logging.StoreError("Failed to write key %s: %v", key, err)
		return err
	}
	return nil
}

// Remove deletes key. Missing keys are a no-op.
func (a *SQLiteAdapter) Remove(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec("DELETE FROM kv_records WHERE key = ?", key)
	if err != nil {
		logging.StoreError("Failed to remove key %s: %v", key, err)
		return err
	}
	return nil
}

// RemoveMany deletes all given keys inside one transaction.
func (a *SQLiteAdapter) RemoveMany(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM kv_records WHERE key = ?", key); err != nil {
			tx.Rollback()
			logging.StoreError("Failed to remove key %s: %v", key, err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}
	logging.StoreDebug("Removed %d keys", len(keys))
	return nil
}

// Close closes the underlying database.
func (a *SQLiteAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}
