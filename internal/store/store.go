// Package store persists the task script in SQLite so it survives restarts.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"hidject/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);`

// Entry is a stored task with its metadata.
type Entry struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Kind      task.Kind `json:"kind"`
	Task      task.Task `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a task.Queue backed by a SQLite table. The read cursor lives
// in memory and starts at the first task on open.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	lastSeq int64
}

// Open opens (creating if needed) the task database at path. ":memory:"
// gives a throwaway store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping task store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize task schema: %w", err)
	}

	log.Infof("Store: task queue at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append adds tasks to the end of the script and returns their entries.
func (s *Store) Append(tasks ...task.Task) ([]Entry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entries := make([]Entry, 0, len(tasks))
	now := time.Now().UTC()
	for _, t := range tasks {
		body, err := task.Marshal(t)
		if err != nil {
			return nil, err
		}
		id := uuid.New().String()
		res, err := tx.Exec(`INSERT INTO tasks (id, kind, body, created_at) VALUES (?, ?, ?, ?)`,
			id, string(t.Kind()), string(body), now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert task: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Seq: seq, ID: id, Kind: t.Kind(), Task: t, CreatedAt: now})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tasks: %w", err)
	}
	return entries, nil
}

// Next returns the task after the cursor and advances it.
func (s *Store) Next() (task.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		seq  int64
		body string
	)
	err := s.db.QueryRow(`SELECT seq, body FROM tasks WHERE seq > ? ORDER BY seq LIMIT 1`, s.lastSeq).Scan(&seq, &body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read next task: %w", err)
	}

	t, err := task.Unmarshal([]byte(body))
	if err != nil {
		// Skip past the bad row so a rewind is needed to hit it again.
		s.lastSeq = seq
		return nil, false, fmt.Errorf("task %d: %w", seq, err)
	}
	s.lastSeq = seq
	return t, true, nil
}

// Rewind moves the cursor back to the first task.
func (s *Store) Rewind() error {
	s.mu.Lock()
	s.lastSeq = 0
	s.mu.Unlock()
	return nil
}

// Flush deletes every task and resets the cursor.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to flush tasks: %w", err)
	}
	s.lastSeq = 0
	return nil
}

// List returns all stored tasks in script order.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT seq, id, kind, body, created_at FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			body string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &kind, &body, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = task.Kind(kind)
		if e.Task, err = task.Unmarshal([]byte(body)); err != nil {
			return nil, fmt.Errorf("task %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len returns the number of stored tasks.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}
