package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
}

// NewDB opens (and creates if needed) the SQLite database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.DB.Close()
}

// InitSchema creates every table the capture pipeline uses.
func (d *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS capture_items (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		raw_content TEXT NOT NULL,
		input_channel TEXT NOT NULL,
		source_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		urgency_score INTEGER NOT NULL DEFAULT 3,
		category TEXT NOT NULL DEFAULT 'note',
		analysis TEXT,
		attachment_id TEXT,
		converted_type TEXT,
		converted_id TEXT,
		source_metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		processed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_capture_items_owner ON capture_items(owner_id, status, created_at);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		capture_item_id TEXT NOT NULL REFERENCES capture_items(id),
		file_path TEXT NOT NULL,
		file_type TEXT,
		file_size INTEGER NOT NULL DEFAULT 0,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		ocr_text TEXT,
		ocr_confidence REAL NOT NULL DEFAULT 0,
		extracted_data TEXT,
		processing_error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS capture_settings (
		owner_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		sms_enabled INTEGER NOT NULL DEFAULT 0,
		phone_digits TEXT NOT NULL DEFAULT '',
		email_enabled INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		all_day INTEGER NOT NULL DEFAULT 0,
		location TEXT,
		assigned_to TEXT,
		priority INTEGER NOT NULL DEFAULT 3,
		category TEXT,
		source_item_id TEXT REFERENCES capture_items(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_owner_start ON events(owner_id, start_time);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		due_date DATETIME,
		assigned_to TEXT,
		priority INTEGER NOT NULL DEFAULT 3,
		category TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		source_item_id TEXT REFERENCES capture_items(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS family_members (
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS calendar_sync (
		event_id TEXT PRIMARY KEY,
		calendar_event_id TEXT NOT NULL,
		synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS drive_sync (
		drive_file_id TEXT PRIMARY KEY,
		local_path TEXT NOT NULL UNIQUE,
		last_synced_at DATETIME NOT NULL,
		direction TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS drive_watch (
		drive_file_id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		capture_item_id TEXT,
		processed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS email_seen (
		owner_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		capture_item_id TEXT,
		seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (owner_id, message_id)
	);
	`

	_, err := d.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	return nil
}
