// Package history keeps a transcript of evaluated units in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("lox.history")

// Entry is one recorded unit.
type Entry struct {
	ID      int64
	Session string
	Source  string
	Status  string
	Output  string
	Created time.Time
}

// Store is a transcript database. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path. Parent directories are created
// as needed. ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database location given to Open.
func (s *Store) Path() string {
	return s.path
}

// Record appends e. A zero Created is set to now. The stored ID is returned.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Created.IsZero() {
		e.Created = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (session, source, status, output, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Session, e.Source, e.Status, e.Output, e.Created.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("recording entry: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries for session, newest first. An empty
// session matches every session.
func (s *Store) Recent(ctx context.Context, session string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, session, source, status, output, created_at FROM entries`
	args := []any{}
	if session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Session, &e.Source, &e.Status, &e.Output, &created); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Created = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions lists every session that has entries, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session FROM entries GROUP BY session ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
