package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"inspectcore/internal/entitymodel/sqlbundle"
	"inspectcore/pkg/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock
}

func expectSchema(mock sqlmock.Sqlmock) {
	mock.ExpectPing()
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.Postgres()) {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, name := range sqlbundle.Tables {
		mock.ExpectQuery("SELECT .+ FROM " + name + "$").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}
}

func TestNewStoreAppliesDDLAndUsesNumberedPlaceholders(t *testing.T) {
	db, mock := newMockDB(t)
	expectSchema(mock)
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	})
	defer restore()

	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("unexpected open arguments %q %q", gotDriver, gotDSN)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clients (id, name, address, contact_person, phone, email, notes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Acme"})
		return err
	}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(context.Background(), "postgres://db/x", nil); err == nil {
		t.Fatalf("expected ping error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("bad dsn") })
	defer restore()
	if _, err := NewStore(context.Background(), "::", nil); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestOverrideSQLOpenRestores(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("stub") })
	restore()
	openMu.Lock()
	defer openMu.Unlock()
	if sqlOpen == nil {
		t.Fatalf("expected sqlOpen to be restored")
	}
}
