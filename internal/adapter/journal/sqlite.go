// Package journal records answered queries in SQLite.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"perspective/internal/domain"
)

//go:embed schema.sql
var schemaFS embed.FS

// CurrentSchemaVersion is the version of the journal schema.
const CurrentSchemaVersion = 1

// timestamps are stored with fixed-width nanoseconds so they sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is a SQLite-backed query journal.
type DB struct {
	sqlDB *sql.DB
	path  string
}

// Open opens or creates the journal at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	db := &DB{sqlDB: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.sqlDB.Close()
}

func (db *DB) migrate() error {
	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return tx.Commit()
}

func (db *DB) schemaVersion() (int, error) {
	var exists int
	if err := db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err := db.sqlDB.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Record stores entry, assigning an ID and timestamp when they are unset.
func (db *DB) Record(ctx context.Context, entry domain.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := db.sqlDB.ExecContext(ctx,
		`INSERT INTO queries (id, query, answer, source_count, degraded, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query, entry.Answer, entry.SourceCount,
		boolToInt(entry.Degraded), entry.Error,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.sqlDB.QueryContext(ctx,
		`SELECT id, query, answer, source_count, degraded, error, created_at
		 FROM queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	entries := []domain.JournalEntry{}
	for rows.Next() {
		var (
			e         domain.JournalEntry
			degraded  int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.Answer, &e.SourceCount, &degraded, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Degraded = degraded != 0
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded queries.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM queries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
