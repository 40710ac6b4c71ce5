// Versioned schema migrations for the kv store. Fresh databases are
// created at the current version; existing databases are upgraded in
// place with additive column migrations.
package storage

import (
	"database/sql"

	"prepcoach/internal/logging"
)

// Schema versions:
// v1: kv_records (key, value)
// v2: Added updated_at column for staleness diagnostics
const CurrentSchemaVersion = 2

// Migration defines an additive column migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all schema migrations to apply. These handle
// databases created before a column existed.
var pendingMigrations = []Migration{
	{"kv_records", "updated_at", "DATETIME DEFAULT CURRENT_TIMESTAMP"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	appliedCount := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := "ALTER TABLE " + m.Table + " ADD COLUMN " + m.Column + " " + m.Def
		if _, err := db.Exec(query); err != nil {
			logging.StoreError("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			return err
		}
		logging.Store("Applied migration: %s.%s", m.Table, m.Column)
		appliedCount++
	}

	if appliedCount > 0 {
		logging.Store("Schema migrations complete (%d applied)", appliedCount)
	}
	return setSchemaVersion(db, CurrentSchemaVersion)
}

// ensureSchemaVersion stamps fresh databases with the current version.
func ensureSchemaVersion(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", CurrentSchemaVersion)
		return err
	}
	return nil
}

// SchemaVersion reports the stored schema version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	current, err := SchemaVersion(db)
	if err == nil && current >= version {
		return nil
	}
	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
