package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kusius/letterbox/internal/store"
)

// DB wraps a sql.DB connection to a SQLite database and implements
// store.Store. It also fans change notifications out to subscribers so that
// live queries can re-read after every committed transaction.
type DB struct {
	db *sql.DB

	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// New opens a SQLite database at the given DSN and runs migrations.
// Use ":memory:" for an in-memory database.
func New(dsn string) (*DB, error) {
	connStr := dsn
	if dsn != ":memory:" {
		connStr = dsn + "?_journal_mode=WAL&_foreign_keys=on"
	} else {
		connStr = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{db: db, subs: make(map[int]chan struct{})}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *DB) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Subscribe registers a change listener. The channel has a buffer of one and
// signals are coalesced: a slow reader sees at least one signal for any
// number of intervening commits.
func (s *DB) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
	return ch, cancel
}

// notify signals all subscribers after a committed write.
func (s *DB) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Compile-time interface compliance check.
var _ store.Store = (*DB)(nil)
