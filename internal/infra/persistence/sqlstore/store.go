// Package sqlstore backs the memory engine with relational tables. The engine
// remains the source of truth for reads; every committed change log is
// replayed into the tables inside one SQL transaction before the engine
// publishes the new state.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"inspectcore/internal/entitymodel/sqlbundle"
	"inspectcore/internal/infra/persistence/memory"
	"inspectcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	DDL  string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLite uses positional "?" parameters.
var SQLite = Dialect{
	Name:        "sqlite",
	DDL:         sqlbundle.SQLite(),
	Placeholder: func(int) string { return "?" },
}

// Postgres uses numbered "$n" parameters.
var Postgres = Dialect{
	Name:        "postgres",
	DDL:         sqlbundle.Postgres(),
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// Store persists the in-memory engine state to the relational schema.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open applies the dialect DDL to db, hydrates the engine from the tables and
// installs the flush hook. The store takes ownership of db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if err := applyDDLStatements(ctx, db, dialect.DDL); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: dialect}
	opts = append(opts, memory.WithCommitHook(s.flush))
	s.Store = memory.NewStore(engine, opts...)
	s.ImportState(snapshot)
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// SchemaFingerprint identifies the DDL bundle applied on open.
func (s *Store) SchemaFingerprint() string { return sqlbundle.Fingerprint(s.dialect.DDL) }

// Close stops the engine and releases the database handle.
func (s *Store) Close() error {
	if err := s.Store.Close(); err != nil {
		return err
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.dialect.Name, err)
	}
	return nil
}

func applyDDLStatements(ctx context.Context, exec execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// flush replays changes in log order. Cascades are already expanded by the
// engine, children first, so the statements satisfy strict foreign keys.
func (s *Store) flush(ctx context.Context, changes []domain.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for i, change := range changes {
		query, args, err := s.statement(change)
		if err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%s %s: %w", change.Action, change.Entity, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) statement(change domain.Change) (string, []any, error) {
	t, ok := tablesByEntity[change.Entity]
	if !ok {
		return "", nil, fmt.Errorf("unknown entity %q", change.Entity)
	}
	switch change.Action {
	case domain.ActionCreate:
		values, err := t.values(change.After)
		if err != nil {
			return "", nil, err
		}
		marks := make([]string, len(values))
		for i := range values {
			marks[i] = s.dialect.Placeholder(i + 1)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), strings.Join(marks, ", ")), values, nil
	case domain.ActionUpdate:
		values, err := t.values(change.After)
		if err != nil {
			return "", nil, err
		}
		sets := make([]string, 0, len(t.columns)-1)
		for i, col := range t.columns[1:] {
			sets = append(sets, fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(i+1)))
		}
		args := append(append([]any{}, values[1:]...), values[0])
		return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", t.name, strings.Join(sets, ", "), s.dialect.Placeholder(len(values))), args, nil
	case domain.ActionDelete:
		values, err := t.values(change.Before)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("DELETE FROM %s WHERE id = %s", t.name, s.dialect.Placeholder(1)), []any{values[0]}, nil
	}
	return "", nil, fmt.Errorf("unknown action %q", change.Action)
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Clients:           map[string]domain.Client{},
		Orders:            map[string]domain.Order{},
		Rooms:             map[string]domain.Room{},
		Points:            map[string]domain.Point{},
		Measurements:      map[string]domain.Measurement{},
		VisualInspections: map[string]domain.VisualInspection{},
	}
	for _, name := range sqlbundle.Tables {
		t := tablesByName[name]
		if err := loadTable(ctx, db, t, &snapshot); err != nil {
			return memory.Snapshot{}, err
		}
	}
	return snapshot, nil
}

func loadTable(ctx context.Context, db *sql.DB, t table, snapshot *memory.Snapshot) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.columns, ", "), t.name))
	if err != nil {
		return fmt.Errorf("select %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := t.scan(rows, snapshot); err != nil {
			return fmt.Errorf("scan %s: %w", t.name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return nil
}
