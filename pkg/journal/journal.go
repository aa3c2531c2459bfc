// Package journal persists a run history of the installation to SQLite:
// every state transition and every image change, timestamped, so operators
// can reconstruct what the piece did overnight without log archaeology.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is an append-mostly SQLite store. Safe for use from the
// coordinator goroutine; not intended for concurrent writers.
type Journal struct {
	conn *sql.DB
}

// Transition is one recorded state change.
type Transition struct {
	ID      int64
	At      time.Time
	From    string
	To      string
	ImageID string
}

// ImageChange is one recorded image switch.
type ImageChange struct {
	ID      int64
	At      time.Time
	ImageID string
	Reason  string // "startup", "idle_cycle"
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at DATETIME NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		image_id TEXT
	);
	CREATE TABLE IF NOT EXISTS image_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at DATETIME NOT NULL,
		image_id TEXT NOT NULL,
		reason TEXT NOT NULL
	);
	`
	_, err := j.conn.Exec(query)
	return err
}

// RecordTransition appends a state transition.
func (j *Journal) RecordTransition(from, to, imageID string) error {
	_, err := j.conn.Exec(
		"INSERT INTO transitions (at, from_state, to_state, image_id) VALUES (?, ?, ?, ?)",
		time.Now().UTC(), from, to, imageID,
	)
	return err
}

// RecordImageChange appends an image switch.
func (j *Journal) RecordImageChange(imageID, reason string) error {
	_, err := j.conn.Exec(
		"INSERT INTO image_changes (at, image_id, reason) VALUES (?, ?, ?)",
		time.Now().UTC(), imageID, reason,
	)
	return err
}

// RecentTransitions returns up to limit transitions, newest first.
func (j *Journal) RecentTransitions(limit int) ([]Transition, error) {
	rows, err := j.conn.Query(
		"SELECT id, at, from_state, to_state, COALESCE(image_id, '') FROM transitions ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.ID, &tr.At, &tr.From, &tr.To, &tr.ImageID); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// RecentImageChanges returns up to limit image switches, newest first.
func (j *Journal) RecentImageChanges(limit int) ([]ImageChange, error) {
	rows, err := j.conn.Query(
		"SELECT id, at, image_id, reason FROM image_changes ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImageChange
	for rows.Next() {
		var ic ImageChange
		if err := rows.Scan(&ic.ID, &ic.At, &ic.ImageID, &ic.Reason); err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

// EngagementCount returns how many transitions entered the given state
// since the cutoff. Useful for a quick "how many people engaged today".
func (j *Journal) EngagementCount(state string, since time.Time) (int, error) {
	var n int
	err := j.conn.QueryRow(
		"SELECT COUNT(*) FROM transitions WHERE to_state = ? AND at >= ?",
		state, since.UTC(),
	).Scan(&n)
	return n, err
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.conn.Close()
}
