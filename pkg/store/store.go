// Package store keeps named turtle programs in a SQLite database so they
// survive restarts and can be re-sent to the robot without recompiling.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// validName is the regex for sanitizing program names.
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

var (
	ErrInvalidName = errors.New("invalid program name")
	ErrNotFound    = errors.New("program not found")
)

// Entry is one saved program: the turtle source it was compiled from and the
// upload payload ready to send to the robot.
type Entry struct {
	Name    string
	Source  string
	Payload []byte
	SavedAt time.Time
}

// Store is a saved-program library backed by SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the library at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		payload BLOB NOT NULL,
		saved_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a program under the given name, replacing any previous version.
func (s *Store) Save(name, source string, payload []byte) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO programs (name, source, payload, saved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET source=excluded.source,
		 payload=excluded.payload, saved_at=excluded.saved_at`,
		name, source, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving program %q: %w", name, err)
	}
	return nil
}

// Load retrieves a saved program by name.
func (s *Store) Load(name string) (*Entry, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT source, payload, saved_at FROM programs WHERE name = ?`, name)
	e := &Entry{Name: name}
	var savedAt int64
	if err := row.Scan(&e.Source, &e.Payload, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading program %q: %w", name, err)
	}
	e.SavedAt = time.Unix(savedAt, 0)
	return e, nil
}

// List returns every saved program's name and timestamp, newest first. The
// payloads are not loaded.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT name, saved_at FROM programs ORDER BY saved_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var savedAt int64
		if err := rows.Scan(&e.Name, &savedAt); err != nil {
			return nil, err
		}
		e.SavedAt = time.Unix(savedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a saved program.
func (s *Store) Delete(name string) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM programs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting program %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
