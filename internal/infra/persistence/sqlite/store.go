// Package sqlite provides the on-device persistent store backed by a single
// SQLite file with foreign keys enforced.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"inspectcore/internal/infra/persistence/memory"
	"inspectcore/internal/infra/persistence/sqlstore"
	"inspectcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultPath   = "inspectcore.db"
	busyTimeoutMS = 5000
)

// Store persists inspection data to a SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// DSN renders the driver connection string for path: foreign keys on, a busy
// timeout for concurrent readers, and WAL journaling.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// NewStore opens (creating when missing) the database at path, applies the
// schema and hydrates the engine from its tables.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The engine serializes writers; one connection keeps pragmas and locks
	// on a single handle.
	db.SetMaxOpenConns(1)
	inner, err := sqlstore.Open(context.Background(), db, sqlstore.SQLite, engine, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
