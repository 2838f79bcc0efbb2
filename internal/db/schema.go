package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Item records are append-only: the core
// never updates or deletes them, so there are no soft-delete columns.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id                INTEGER PRIMARY KEY,
    type              TEXT NOT NULL CHECK (type IN ('lost', 'found')),
    title             TEXT NOT NULL,
    description       TEXT,
    owner_contact     TEXT,
    image_fingerprint TEXT,
    embedding_json    TEXT,
    image             BLOB,
    image_mime        TEXT,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
