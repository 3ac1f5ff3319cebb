package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Export writes a consistent copy of the open database to destPath
func (d *DB) Export(destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("destination %s already exists", destPath)
	}

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if _, err := d.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Compact reclaims the space left by cleared results
func (d *DB) Compact() error {
	if _, err := d.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to compact database: %w", err)
	}
	return nil
}

// VerifyIntegrity checks that the database at dbPath is a valid history
// database
func VerifyIntegrity(dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database does not exist: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Run integrity check
	var integrityCheck string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&integrityCheck); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if integrityCheck != "ok" {
		return fmt.Errorf("database integrity check failed: %s", integrityCheck)
	}

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name IN ('results', 'runs')")
	if err != nil {
		return fmt.Errorf("failed to query sqlite_master: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		found = append(found, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tables: %w", err)
	}
	if len(found) != 2 {
		return fmt.Errorf("missing history tables (found: %s)", strings.Join(found, ", "))
	}

	return nil
}
