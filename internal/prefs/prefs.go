// Package prefs provides SQLite-backed persistence for per-reader
// preferences: theme, font, bookmarks, and reading progress.
package prefs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS preferences (
	client_id  TEXT PRIMARY KEY,
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Preferences is the persisted reading configuration for one client.
type Preferences struct {
	Theme      string   `json:"theme"`
	FontSize   int      `json:"font_size"`
	FontFamily string   `json:"font_family,omitempty"`
	Bookmarks  []string `json:"bookmarks"`
	// Progress maps post slug to scroll fraction in [0, 1].
	Progress map[string]float64 `json:"progress"`
}

// Defaults returns the preferences a new or unreadable client record gets.
func Defaults() Preferences {
	return Preferences{
		Theme:     "auto",
		FontSize:  16,
		Bookmarks: []string{},
		Progress:  map[string]float64{},
	}
}

// DB wraps a sql.DB with preference operations.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("prefs: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: apply schema: %w", err)
	}
	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the preferences for clientID. A missing row yields defaults;
// a row whose payload no longer parses is replaced by defaults at the read
// site and logged, never propagated as an error.
func (db *DB) Get(clientID string) (Preferences, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT data FROM preferences WHERE client_id = ?`, clientID).Scan(&raw)
	if err == sql.ErrNoRows {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("prefs: get: %w", err)
	}

	p := Defaults()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		db.logger.Warn("prefs: malformed record, using defaults",
			slog.String("client_id", clientID), slog.String("error", err.Error()))
		return Defaults(), nil
	}
	if p.Bookmarks == nil {
		p.Bookmarks = []string{}
	}
	if p.Progress == nil {
		p.Progress = map[string]float64{}
	}
	return p, nil
}

// Put stores the preferences for clientID, replacing any existing record.
func (db *DB) Put(clientID string, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO preferences (client_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, clientID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("prefs: put: %w", err)
	}
	return nil
}

// Delete removes the record for clientID. Deleting an absent record is not
// an error.
func (db *DB) Delete(clientID string) error {
	if _, err := db.conn.Exec(`DELETE FROM preferences WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("prefs: delete: %w", err)
	}
	return nil
}
